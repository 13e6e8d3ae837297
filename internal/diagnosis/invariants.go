package diagnosis

import (
	"fmt"

	"github.com/vbonduro/plantdoc/internal/domain"
)

// CheckInvariants reports the first cross-field inconsistency in s.
func CheckInvariants(s domain.Session) error {
	initial := s.Stage == domain.StageInitial || s.Stage == ""
	if initial == (s.Image != nil) {
		return fmt.Errorf("stage %s with image set=%t", s.Stage, s.Image != nil)
	}
	if len(s.PendingQuestions) > 0 && s.Stage != domain.StageAwaitingEnvironmentalInfo {
		return fmt.Errorf("pending questions in stage %s", s.Stage)
	}
	if s.FinalReport != "" && s.Stage != domain.StageFollowUpChat {
		return fmt.Errorf("final report in stage %s", s.Stage)
	}
	if !initial && s.PlantName == "" {
		return fmt.Errorf("stage %s without a plant name", s.Stage)
	}
	if initial && (s.PlantName != "" || len(s.Transcript) > 0 || s.PreliminaryFindings != "") {
		return fmt.Errorf("initial stage carries conversation state")
	}
	return nil
}
