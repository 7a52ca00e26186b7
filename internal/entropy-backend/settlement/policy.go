package settlement

import (
	"fmt"
	"strings"
)

// Policy define o que acontece quando a tx de settlement falha
type Policy string

const (
	// PolicyDrop registra a falha e abandona a requisição na primeira tentativa
	PolicyDrop Policy = "drop"
	// PolicyRetry tenta até MaxAttempts vezes com backoff linear antes de abandonar
	PolicyRetry Policy = "retry"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyDrop, PolicyRetry:
		return p, nil
	case "":
		return PolicyDrop, nil
	default:
		return "", fmt.Errorf("unknown settlement failure policy %q", s)
	}
}
