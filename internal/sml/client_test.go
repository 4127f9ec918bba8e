package sml

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

var pid = identifier.ParticipantID{Scheme: "iso6523-actorid-upis", Value: "9915:test"}

const okResponse = `<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body/></soap:Envelope>`

func faultResponse(code, message string) string {
	return `<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault>
      <faultcode>soap:Server</faultcode>
      <faultstring>` + message + `</faultstring>
      <detail><ns2:` + code + ` xmlns:ns2="http://busdox.org/serviceMetadata/ManageParticipantIdentifierService/1.0/"><ErrorMessage>` + message + `</ErrorMessage></ns2:` + code + `></detail>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`
}

type reply struct {
	status int
	body   string
}

// smlServer answers with the queued replies, then with the last one
type smlServer struct {
	*httptest.Server

	mu       sync.Mutex
	replies  []reply
	requests []*etree.Document
	actions  []string
}

func newSMLServer(t *testing.T, replies ...reply) *smlServer {
	t.Helper()
	s := &smlServer{replies: replies}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		doc := etree.NewDocument()
		_ = doc.ReadFromBytes(data)

		s.mu.Lock()
		s.requests = append(s.requests, doc)
		s.actions = append(s.actions, r.Header.Get("SOAPAction"))
		rep := s.replies[0]
		if len(s.replies) > 1 {
			s.replies = s.replies[1:]
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(rep.status)
		_, _ = io.WriteString(w, rep.body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *smlServer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestClient(t *testing.T, url string, maxRetries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		ManagementURL: url,
		SMPID:         "SMP-TEST",
		MaxRetries:    maxRetries,
	})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{SMPID: "x"})
	assert.Error(t, err)
	_, err = NewClient(Config{ManagementURL: "https://sml.example.com"})
	assert.Error(t, err)
}

func TestClient_CreateRequest(t *testing.T) {
	srv := newSMLServer(t, reply{status: http.StatusOK, body: okResponse})
	c := newTestClient(t, srv.URL, 0)

	require.NoError(t, c.CreateServiceGroup(context.Background(), pid))
	require.Equal(t, 1, srv.calls())

	doc := srv.requests[0]
	create := doc.FindElement("//CreateParticipantIdentifier")
	require.NotNil(t, create)
	pidEl := create.FindElement("./ParticipantIdentifier")
	require.NotNil(t, pidEl)
	assert.Equal(t, "iso6523-actorid-upis", pidEl.SelectAttrValue("scheme", ""))
	assert.Equal(t, "9915:test", pidEl.Text())
	assert.Equal(t, "SMP-TEST", create.FindElement("./ServiceMetadataPublisherID").Text())

	msgID := doc.FindElement("//MessageID")
	require.NotNil(t, msgID)
	assert.Contains(t, msgID.Text(), "urn:uuid:")
	assert.Contains(t, srv.actions[0], ":createIn")
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		reply     reply
		call      func(c *Client) error
		wantIs    error
		wantCalls int
	}{
		{
			name:      "already registered",
			reply:     reply{http.StatusInternalServerError, faultResponse("BadRequestFault", "The participant identifier already exists")},
			call:      func(c *Client) error { return c.CreateServiceGroup(context.Background(), pid) },
			wantIs:    ErrAlreadyRegistered,
			wantCalls: 1,
		},
		{
			name:      "unauthorized fault",
			reply:     reply{http.StatusInternalServerError, faultResponse("UnauthorizedFault", "not your participant")},
			call:      func(c *Client) error { return c.CreateServiceGroup(context.Background(), pid) },
			wantIs:    ErrUnauthorized,
			wantCalls: 1,
		},
		{
			name:      "unauthorized status",
			reply:     reply{http.StatusForbidden, ""},
			call:      func(c *Client) error { return c.DeleteServiceGroup(context.Background(), pid) },
			wantIs:    ErrUnauthorized,
			wantCalls: 1,
		},
		{
			name:      "bad request",
			reply:     reply{http.StatusInternalServerError, faultResponse("BadRequestFault", "invalid scheme")},
			call:      func(c *Client) error { return c.CreateServiceGroup(context.Background(), pid) },
			wantIs:    ErrBadRequest,
			wantCalls: 1,
		},
		{
			name:      "internal error is retried",
			reply:     reply{http.StatusInternalServerError, faultResponse("InternalErrorFault", "db down")},
			call:      func(c *Client) error { return c.CreateServiceGroup(context.Background(), pid) },
			wantIs:    ErrTransient,
			wantCalls: 3,
		},
		{
			name:      "unavailable is retried",
			reply:     reply{http.StatusServiceUnavailable, ""},
			call:      func(c *Client) error { return c.DeleteServiceGroup(context.Background(), pid) },
			wantIs:    ErrTransient,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSMLServer(t, tt.reply)
			err := tt.call(newTestClient(t, srv.URL, 2))
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantCalls, srv.calls())
		})
	}
}

func TestClient_RetryThenSuccess(t *testing.T) {
	srv := newSMLServer(t,
		reply{http.StatusBadGateway, ""},
		reply{http.StatusServiceUnavailable, ""},
		reply{http.StatusOK, okResponse})
	c := newTestClient(t, srv.URL, 3)

	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	require.NoError(t, c.CreateServiceGroup(context.Background(), pid))
	assert.Equal(t, 3, srv.calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestClient_RetryStopsOnCancel(t *testing.T) {
	srv := newSMLServer(t, reply{http.StatusServiceUnavailable, ""})
	c := newTestClient(t, srv.URL, 5)

	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := c.CreateServiceGroup(ctx, pid)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, srv.calls())
}

func TestClient_IdempotentOperations(t *testing.T) {
	notFound := reply{http.StatusInternalServerError, faultResponse("NotFoundFault", "participant not found")}
	exists := reply{http.StatusInternalServerError, faultResponse("BadRequestFault", "participant already exists")}

	tests := []struct {
		name   string
		reply  reply
		call   func(c *Client) error
		action string
	}{
		{"undo create of unknown participant", notFound, func(c *Client) error {
			return c.UndoCreateServiceGroup(context.Background(), pid)
		}, ":deleteIn"},
		{"delete of unknown participant", notFound, func(c *Client) error {
			return c.DeleteServiceGroup(context.Background(), pid)
		}, ":deleteIn"},
		{"undo delete of known participant", exists, func(c *Client) error {
			return c.UndoDeleteServiceGroup(context.Background(), pid)
		}, ":createIn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSMLServer(t, tt.reply)
			require.NoError(t, tt.call(newTestClient(t, srv.URL, 0)))
			assert.Contains(t, srv.actions[0], tt.action)
		})
	}
}

func TestNoop(t *testing.T) {
	var n Noop
	ctx := context.Background()
	assert.NoError(t, n.CreateServiceGroup(ctx, pid))
	assert.NoError(t, n.UndoCreateServiceGroup(ctx, pid))
	assert.NoError(t, n.DeleteServiceGroup(ctx, pid))
	assert.NoError(t, n.UndoDeleteServiceGroup(ctx, pid))
}
