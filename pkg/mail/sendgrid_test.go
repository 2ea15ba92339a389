package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGridSenderSend(t *testing.T) {
	var payload map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, sendgridEndpoint, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSendGridSender("sg-key", srv.URL, "[MBPY] ")
	require.NoError(t, sender.Send(context.Background(), sampleMessage()))

	assert.Equal(t, "Bearer sg-key", auth)
	personalizations := payload["personalizations"].([]interface{})
	first := personalizations[0].(map[string]interface{})
	assert.Equal(t, "[MBPY] Weekly attendance", first["subject"])
	attachments := payload["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	assert.Equal(t, "absent_days.csv", attachments[0].(map[string]interface{})["filename"])
}

func TestSendGridSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	err := NewSendGridSender("bad", srv.URL, "").Send(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
