package diagnosis

import (
	"fmt"
	"strings"
)

func triagePrompt(plantName string) string {
	return "this is plant " + plantName
}

func confirmationMessage(plantName string) string {
	return fmt.Sprintf("I think this plant is a **%s**. Is that correct? (yes/no)", plantName)
}

func clarifyMessage(plantName string) string {
	return fmt.Sprintf("Please answer yes or no: is this plant a **%s**?", plantName)
}

func questionsMessage(analysis string, questions []string) string {
	var sb strings.Builder
	if analysis != "" {
		sb.WriteString(analysis)
		sb.WriteString("\n\n")
	}
	sb.WriteString("To narrow down the diagnosis, please tell me:\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func reportPrompt(plantName, findings string, questions []string, answers string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plant: %s\n\n", plantName)
	fmt.Fprintf(&sb, "Preliminary findings:\n%s\n\n", findings)
	if len(questions) > 0 {
		sb.WriteString("Questions asked:\n")
		for i, q := range questions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Grower's answers:\n%s\n\n", answers)
	sb.WriteString("Write the final diagnosis and treatment report.")
	return sb.String()
}
