package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMessage() *Message {
	return &Message{
		ID:     NewMessageID(),
		Type:   "ping",
		Source: "m1",
		Target: "m2",
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Run("完整消息", func(t *testing.T) {
		require.NoError(t, validMessage().Validate())
		require.NoError(t, validMessage().ValidateRequest())
	})

	t.Run("缺少必需字段", func(t *testing.T) {
		for _, mutate := range []func(*Message){
			func(m *Message) { m.ID = "" },
			func(m *Message) { m.Source = "" },
			func(m *Message) { m.Type = "" },
		} {
			msg := validMessage()
			mutate(msg)
			assert.ErrorIs(t, msg.Validate(), ErrMalformedMessage)
		}
	})

	t.Run("请求缺少目标", func(t *testing.T) {
		msg := validMessage()
		msg.Target = ""
		assert.NoError(t, msg.Validate())
		assert.ErrorIs(t, msg.ValidateRequest(), ErrMalformedMessage)
	})

	t.Run("nil 消息", func(t *testing.T) {
		var msg *Message
		assert.ErrorIs(t, msg.Validate(), ErrMalformedMessage)
	})
}

func TestMessage_Expired(t *testing.T) {
	now := time.Now()
	msg := validMessage()

	assert.False(t, msg.Expired(now), "no ttl never expires")

	msg.TTL = time.Second
	msg.Timestamp = now.Add(-500 * time.Millisecond)
	assert.False(t, msg.Expired(now))

	msg.Timestamp = now.Add(-2 * time.Second)
	assert.True(t, msg.Expired(now))
}

func TestMessage_WithTargetCopiesEnvelope(t *testing.T) {
	msg := validMessage()
	msg.Target = ""
	msg.Metadata = map[string]string{"k": "v"}

	c := msg.WithTarget("m3")
	c.Metadata["k"] = "changed"

	assert.Equal(t, "m3", c.Target)
	assert.Empty(t, msg.Target)
	assert.Equal(t, "v", msg.Meta("k"))
	assert.True(t, msg.IsBroadcast())
	assert.False(t, c.IsBroadcast())
}

func TestTimeoutError(t *testing.T) {
	err := error(&TimeoutError{MessageID: "msg-42", Timeout: 50 * time.Millisecond})

	assert.True(t, errors.Is(err, ErrRequestTimeout))
	assert.Contains(t, err.Error(), "msg-42")
}

func TestResponseFromError(t *testing.T) {
	req := validMessage()
	req.CorrelationID = "c1"

	t.Run("合成失败响应", func(t *testing.T) {
		resp := ResponseFromError(req, errors.New("boom"))
		assert.False(t, resp.Success)
		assert.Equal(t, "boom", resp.Error)
		assert.Equal(t, req.ID, resp.MessageID)
		assert.Equal(t, "c1", resp.CorrelationID)
	})

	t.Run("请求为 nil", func(t *testing.T) {
		resp := ResponseFromError(nil, errors.New("malformed"))
		assert.False(t, resp.Success)
		assert.Empty(t, resp.MessageID)
		assert.Equal(t, "malformed", resp.Error)
	})

	t.Run("沿用 ResponseError", func(t *testing.T) {
		custom := &MessageResponse{MessageID: req.ID, Error: "custom"}
		resp := ResponseFromError(req, &ResponseError{Response: custom})
		assert.Same(t, custom, resp)
	})
}

func TestModuleInfo(t *testing.T) {
	info := ModuleInfo{ID: "m1", Inputs: []string{"in"}, Outputs: []string{"out"}, Accepts: []string{"reset"}}

	assert.True(t, info.HasInput("in"))
	assert.False(t, info.HasInput("out"))
	assert.True(t, info.HasOutput("out"))
	assert.True(t, info.AcceptsType("reset"))

	c := info.Clone()
	c.Inputs[0] = "changed"
	assert.Equal(t, "in", info.Inputs[0])
}
