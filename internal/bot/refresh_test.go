package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/credit-bot/internal/config"
	"github.com/yourname/credit-bot/internal/ledger"
	"github.com/yourname/credit-bot/internal/store/memory"
)

// fakeTelegramClient answers the Bot API over a canned transport and
// records the text of every sendMessage call.
type fakeTelegramClient struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeTelegramClient) Do(req *http.Request) (*http.Response, error) {
	result := `true`
	switch {
	case strings.HasSuffix(req.URL.Path, "/getMe"):
		result = `{"id":1,"is_bot":true,"first_name":"Credit","username":"creditbot"}`
	case strings.HasSuffix(req.URL.Path, "/sendMessage"):
		if err := req.ParseForm(); err == nil {
			f.mu.Lock()
			f.texts = append(f.texts, req.PostForm.Get("text"))
			f.mu.Unlock()
		}
		result = `{"message_id":1}`
	}
	body := fmt.Sprintf(`{"ok":true,"result":%s}`, result)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

func (f *fakeTelegramClient) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func TestRefreshCommand(t *testing.T) {
	ctx := context.Background()
	fake := &fakeTelegramClient{}
	api, err := tgbotapi.NewBotAPIWithClient("TEST:TOKEN", tgbotapi.APIEndpoint, fake)
	require.NoError(t, err)

	st := memory.New()
	cfg := config.Config{CurrencyName: "credits", PrivilegedUser: "admin", ClaimAmount: 50}
	engine := ledger.New(st, ledger.Config{
		Fees:              ledger.IdentityFee(),
		PrivilegedAccount: "admin",
		ClaimAmount:       50,
	})
	h := NewHandler(api, cfg, engine, st)

	h.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "/refresh",
		From: &tgbotapi.User{UserName: "alice"},
		Chat: &tgbotapi.Chat{ID: 42, Type: "private"},
	}})

	texts := fake.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, "Balance refreshed!", texts[0])

	// The inbound command refreshed alice's delivery address.
	chatID, ok, err := st.DeliveryAddress(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), chatID)
}
