package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestMaskCredential(t *testing.T) {
	assert.Equal(t, "", MaskCredential(""))
	assert.Equal(t, "***", MaskCredential("abc"))
	assert.Equal(t, "ab****", MaskCredential("abcdef"))
	assert.Equal(t, "abcd****mnop", MaskCredential("abcdefghmnop"))
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		input string
		leak  string
	}{
		{"query param", `Get "https://finnhub.io/api/v1/quote?symbol=TSLA&token=c9secrettoken42": dial tcp: timeout`, "c9secrettoken42"},
		{"kite header", `Authorization: token myapikey:myaccesstoken99`, "myaccesstoken99"},
		{"openai key", `invalid key sk-proj-abcdefghijklmnop1234`, "sk-proj-abcdefghijklmnop1234"},
		{"assignment", `api_key="supersecretvalue"`, "supersecretvalue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Redact(tt.input)
			assert.NotContains(t, out, tt.leak)
		})
	}

	assert.Equal(t, "symbol=TSLA price=250", Redact("symbol=TSLA price=250"))
}

func TestRedactFields(t *testing.T) {
	out := RedactFields(map[string]string{
		"token":           "c9secrettoken42",
		"kite.api_key":    "kitekey1",
		"openai.base_url": "http://localhost:8080/v1",
		"symbol":          "TSLA",
	})
	assert.Equal(t, "c9se*******en42", out["token"])
	assert.Equal(t, "ki******", out["kite.api_key"])
	assert.Equal(t, "http://localhost:8080/v1", out["openai.base_url"])
	assert.Equal(t, "TSLA", out["symbol"])
}

func TestRedactError(t *testing.T) {
	assert.NoError(t, RedactError(nil))

	plain := errors.New("connection refused")
	assert.Same(t, plain, RedactError(plain))

	err := RedactError(fmt.Errorf("GET /quote?token=c9secrettoken42: %w", context.DeadlineExceeded))
	assert.NotContains(t, err.Error(), "c9secrettoken42")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// Property: a token passed as a query parameter never survives redaction.
func TestProperty_TokenNeverLeaks(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("query token is masked", prop.ForAll(
		func(token string) bool {
			url := "https://finnhub.io/api/v1/quote?symbol=TSLA&token=" + token
			return !strings.Contains(Redact(url), token)
		},
		gen.RegexMatch(`[a-z0-9]{12,40}`),
	))

	properties.TestingRun(t)
}
