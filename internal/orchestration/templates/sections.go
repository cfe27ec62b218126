package templates

import "gopkg.in/yaml.v3"

// RuleSections is a role's rules content, authored as YAML so mission
// text, operational authority, and endpoint reference can be edited
// without touching the Markdown renderer (SPEC_FULL.md DOMAIN STACK: "the
// per-role rules-file templates are authored as YAML-described sections
// ... and rendered to Markdown"), the way the teacher's
// internal/orchestration/workflow loader keeps template content in YAML
// and renders it separately.
type RuleSections struct {
	Mission              string     `yaml:"mission"`
	OperationalAuthority []string   `yaml:"operational_authority"`
	EndpointReference    []Endpoint `yaml:"endpoint_reference"`
}

// Endpoint documents one control-plane operation a worker may invoke or
// needs to know about.
type Endpoint struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// coordinatorSectionsYAML describes the rules content for roles that may
// delegate (§4.2: GENERAL, COLONEL, CAPTAIN).
const coordinatorSectionsYAML = `
mission: >
  You coordinate this project. Break the goal into worker-sized tasks,
  delegate them, and review completed work before accepting it.
operational_authority:
  - Spawn child workers for IMPL, TEST, REVIEW, FIX, or RESEARCH roles.
  - Kill a misbehaving or stalled child; force is required if it is itself
    protected.
  - Do not edit files outside your own working directory.
endpoint_reference:
  - name: spawn
    description: create a child worker with a task and optional dependencies
  - name: kill
    description: tear down a child worker (force required for protected workers)
  - name: complete
    description: mark yourself completed once every child has finished
`

// workerSectionsYAML describes the rules content for roles that carry out
// a single task and cannot delegate (§4.2).
const workerSectionsYAML = `
mission: >
  You carry out a single assigned task. Stay inside your role's tool
  restrictions and report completion honestly.
operational_authority:
  - Read, write, and run commands only inside your project's working
    directory.
  - Do not edit files under .claude/rules or GEMINI-strategos-worker-*.md;
    they are regenerated by the orchestration engine.
endpoint_reference:
  - name: complete
    description: mark yourself completed when the assigned task is done
`

func mustParseSections(doc string) RuleSections {
	var s RuleSections
	if err := yaml.Unmarshal([]byte(doc), &s); err != nil {
		panic("templates: invalid embedded rule sections: " + err.Error())
	}
	return s
}

var (
	coordinatorSections = mustParseSections(coordinatorSectionsYAML)
	workerSections      = mustParseSections(workerSectionsYAML)
)

// SectionsFor returns the rule sections for role: the coordinator sections
// for delegating roles, the worker sections otherwise.
func SectionsFor(role Role) RuleSections {
	if CanDelegate(role) {
		return coordinatorSections
	}
	return workerSections
}
