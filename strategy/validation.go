package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/agentorch/agent"
)

// Validator is the post-execution predicate the sequential strategy applies
// exactly once per attempt.
type Validator interface {
	Name() string
	Validate(ctx context.Context, output string) (ok bool, reason string, err error)
}

// ValidatorFor builds the validator configured on the domain, or nil when
// the domain does not validate.
func ValidatorFor(d *agent.Domain, agents map[string]agent.Agent, exec agent.Executor) (Validator, error) {
	cfg := d.Validation
	switch cfg.Type {
	case agent.ValidationNone:
		return nil, nil
	case agent.ValidationKeyword:
		if len(cfg.Keywords) == 0 {
			return nil, fmt.Errorf("%w: keyword validation requires keywords", agent.ErrInvalidDomain)
		}
		return &KeywordValidator{Keywords: cfg.Keywords}, nil
	case agent.ValidationSchema:
		if len(cfg.RequiredKeys) == 0 {
			return nil, fmt.Errorf("%w: schema validation requires required_keys", agent.ErrInvalidDomain)
		}
		return &SchemaValidator{RequiredKeys: cfg.RequiredKeys}, nil
	case agent.ValidationAgent:
		judge, ok := agents[cfg.ValidatorAgentID]
		if !ok {
			return nil, fmt.Errorf("%w: validator agent %q", agent.ErrUnknownAgent, cfg.ValidatorAgentID)
		}
		return &AgentValidator{exec: exec, judge: judge}, nil
	default:
		return nil, fmt.Errorf("%w: validation type %q", agent.ErrInvalidDomain, cfg.Type)
	}
}

// KeywordValidator accepts output containing every required keyword
// (case-insensitive). This is a caller-configured acceptance policy, not a
// failure detector: strategies never infer failure from output content.
type KeywordValidator struct {
	Keywords []string
}

func (v *KeywordValidator) Name() string { return "keyword" }

func (v *KeywordValidator) Validate(ctx context.Context, output string) (bool, string, error) {
	lower := strings.ToLower(output)
	var missing []string
	for _, kw := range v.Keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			missing = append(missing, kw)
		}
	}
	if len(missing) > 0 {
		return false, "missing required keywords: " + strings.Join(missing, ", "), nil
	}
	return true, "", nil
}

// SchemaValidator accepts output that is a JSON object containing every
// required top-level key.
type SchemaValidator struct {
	RequiredKeys []string
}

func (v *SchemaValidator) Name() string { return "schema" }

func (v *SchemaValidator) Validate(ctx context.Context, output string) (bool, string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &obj); err != nil {
		return false, "output is not a JSON object: " + err.Error(), nil
	}
	var missing []string
	for _, key := range v.RequiredKeys {
		if _, ok := obj[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return false, "missing required keys: " + strings.Join(missing, ", "), nil
	}
	return true, "", nil
}

// AgentValidator delegates the verdict to a judge agent. The judge is
// prompted to reply "VALID" or "INVALID: <reason>"; anything else is
// reported as a validation error for the caller to decide on.
type AgentValidator struct {
	exec  agent.Executor
	judge agent.Agent
}

func (v *AgentValidator) Name() string { return "agent:" + v.judge.ID }

func (v *AgentValidator) Validate(ctx context.Context, output string) (bool, string, error) {
	prompt := fmt.Sprintf(
		"Assess whether the following response fully answers its task.\n"+
			"Reply with exactly VALID, or INVALID: <short reason>.\n\nResponse:\n%s",
		output,
	)

	verdict, err := v.exec.Invoke(ctx, v.judge, prompt)
	if err != nil {
		return false, "", fmt.Errorf("validator agent %s: %w", v.judge.ID, err)
	}

	trimmed := strings.TrimSpace(verdict)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "VALID"):
		return true, "", nil
	case strings.HasPrefix(upper, "INVALID"):
		reason := strings.TrimSpace(strings.TrimPrefix(trimmed[len("INVALID"):], ":"))
		if reason == "" {
			reason = "rejected by validator agent"
		}
		return false, reason, nil
	default:
		return false, "", fmt.Errorf("validator agent %s returned unrecognized verdict %q", v.judge.ID, truncate(trimmed, 80))
	}
}
