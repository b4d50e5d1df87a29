package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"labelcheck/api/internal/compliance"
	"labelcheck/api/internal/rules"
)

func sampleResult() *compliance.Result {
	return &compliance.Result{
		ProductID: "P1",
		Score:     42,
		Grade:     "F",
		Passed:    5,
		Failed:    6,
		Verdicts: []rules.Verdict{
			{RuleID: "R001", RuleName: "MRP Declaration", Severity: rules.Critical},
			{RuleID: "R004", RuleName: "Quantity Unit", Severity: rules.High},
			{RuleID: "R010", RuleName: "FSSAI License", Severity: rules.Critical},
			{RuleID: "R003", RuleName: "Net Quantity", Severity: rules.Critical, Passed: true},
		},
	}
}

func TestMessage(t *testing.T) {
	p := compliance.Product{ID: "P1", Title: "Acme Chips", Marketplace: "shop", URL: "https://shop/p1"}
	got := Message(p, sampleResult())

	assert.True(t, strings.HasPrefix(got, "⚠️ NON-COMPLIANT: Acme Chips\n"))
	assert.Contains(t, got, "Score: 42.0  Grade: F")
	assert.Contains(t, got, "• R001 MRP Declaration\n• R010 FSSAI License\n")
	assert.NotContains(t, got, "R004")
	assert.NotContains(t, got, "R003")
	assert.True(t, strings.HasSuffix(got, "https://shop/p1"))

	assert.Contains(t, Message(compliance.Product{ID: "P9"}, &compliance.Result{}), "NON-COMPLIANT: P9")
}

func TestMessage_CapsCriticalList(t *testing.T) {
	res := &compliance.Result{}
	for i := 0; i < 8; i++ {
		res.Verdicts = append(res.Verdicts, rules.Verdict{RuleID: "X", Severity: rules.Critical})
	}
	got := Message(compliance.Product{ID: "P1"}, res)
	assert.Equal(t, 5, strings.Count(got, "• X"))
	assert.Contains(t, got, "… and 3 more")
}

func TestTelegram_NonCompliant(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"lc","username":"labelcheck_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			mu.Lock()
			sent = append(sent, r.PostForm.Get("chat_id")+"|"+r.PostForm.Get("text"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"chat":{"id":-100},"date":0}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n, err := NewTelegram("tok", srv.URL+"/bot%s/%s", -100, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, n.NonCompliant(context.Background(), compliance.Product{ID: "P1", Title: "Acme"}, sampleResult()))
	mu.Lock()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "-100|⚠️ NON-COMPLIANT: Acme"))
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.NonCompliant(ctx, compliance.Product{ID: "P1"}, sampleResult()), context.Canceled)
}

type failingSender struct{}

func (failingSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	return tgbotapi.Message{}, assert.AnError
}

func TestTelegram_SendError(t *testing.T) {
	n := &Telegram{bot: failingSender{}, chatID: 1, log: zaptest.NewLogger(t)}
	err := n.NonCompliant(context.Background(), compliance.Product{ID: "P1"}, sampleResult())
	assert.ErrorIs(t, err, assert.AnError)
}
