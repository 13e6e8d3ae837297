package vision

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type RoleName string

const (
	RoleIdentification RoleName = "identification"
	RoleTriage         RoleName = "triage"
	RoleFinalReport    RoleName = "final_report"
	RoleFollowUp       RoleName = "follow_up"
)

var allRoles = []RoleName{RoleIdentification, RoleTriage, RoleFinalReport, RoleFollowUp}

//go:embed roles.yaml
var defaultRolesYAML []byte

// Role binds a purpose to a system instruction and generation parameters.
type Role struct {
	Instruction     string  `yaml:"instruction"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	TopP            float32 `yaml:"top_p"`
	TopK            int     `yaml:"top_k"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// Roles is the immutable role table. Lookups return copies.
type Roles struct {
	byName map[RoleName]Role
}

func (r Roles) Get(name RoleName) (Role, bool) {
	role, ok := r.byName[name]
	return role, ok
}

// ModelFor returns the role's model override, or fallback when unset.
func (r Roles) ModelFor(name RoleName, fallback string) string {
	if role, ok := r.byName[name]; ok && role.Model != "" {
		return role.Model
	}
	return fallback
}

// DefaultRoles parses the embedded role table.
func DefaultRoles() (Roles, error) {
	return ParseRoles(defaultRolesYAML)
}

// LoadRoles reads a role table from path, or the embedded table when path is empty.
func LoadRoles(path string) (Roles, error) {
	if path == "" {
		return DefaultRoles()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Roles{}, fmt.Errorf("failed to read roles file: %w", err)
	}
	return ParseRoles(data)
}

func ParseRoles(data []byte) (Roles, error) {
	var doc struct {
		Defaults Role              `yaml:"defaults"`
		Roles    map[RoleName]Role `yaml:"roles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Roles{}, fmt.Errorf("failed to parse roles: %w", err)
	}

	table := make(map[RoleName]Role, len(allRoles))
	for _, name := range allRoles {
		role, ok := doc.Roles[name]
		if !ok {
			return Roles{}, fmt.Errorf("role %q is not defined", name)
		}
		role.Instruction = strings.TrimSpace(role.Instruction)
		if role.Instruction == "" {
			return Roles{}, fmt.Errorf("role %q has an empty instruction", name)
		}
		table[name] = withDefaults(role, doc.Defaults)
	}
	return Roles{byName: table}, nil
}

func withDefaults(r, d Role) Role {
	if r.Model == "" {
		r.Model = d.Model
	}
	if r.Temperature == 0 {
		r.Temperature = d.Temperature
	}
	if r.TopP == 0 {
		r.TopP = d.TopP
	}
	if r.TopK == 0 {
		r.TopK = d.TopK
	}
	if r.MaxOutputTokens == 0 {
		r.MaxOutputTokens = d.MaxOutputTokens
	}
	return r
}
