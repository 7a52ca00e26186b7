package txsubmit

import (
	"regexp"
	"strconv"
	"strings"
)

// Formatos conhecidos de erro de nonce, do mais específico para o mais genérico:
//
//	hardhat/anvil:  "Nonce too low. Expected nonce to be 7 but got 5."
//	genérico:       "expected nonce 7"
//	geth:           "nonce too low: next nonce 7, tx nonce 5"
//	cosmos-evm:     "invalid nonce; got 5, expected 7" / "invalid nonce: expected 7, got 5"
var expectedNoncePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)expected nonce (?:to be )?(\d+)`),
	regexp.MustCompile(`(?i)next nonce (\d+)`),
	regexp.MustCompile(`(?i)expected (\d+)`),
}

// IsNonceError informa se a mensagem do provedor é um conflito de nonce
func IsNonceError(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "nonce")
}

// ParseExpectedNonce extrai o nonce que o nó espera, quando a mensagem o informa
func ParseExpectedNonce(msg string) (uint64, bool) {
	if !IsNonceError(msg) {
		return 0, false
	}
	for _, re := range expectedNoncePatterns {
		m := re.FindStringSubmatch(msg)
		if len(m) != 2 {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}
