package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/slotguard/internal/errs"
	"github.com/and161185/slotguard/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func startServer(t *testing.T, setup func(r *mux.Router)) (*Client, *httptest.Server) {
	t.Helper()
	r := mux.NewRouter()
	setup(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second, WithLogger(zaptest.NewLogger(t))), srv
}

func TestClient_Challenge_HeadersAndPayload(t *testing.T) {
	t.Parallel()
	var gotReqID, gotCT string
	c, _ := startServer(t, func(r *mux.Router) {
		r.HandleFunc(PathChallenge, func(w http.ResponseWriter, r *http.Request) {
			gotReqID = r.Header.Get("X-Request-ID")
			gotCT = r.Header.Get("Content-Type")
			writeJSON(w, http.StatusOK, map[string]string{"svg": "<svg/>", "captchaId": "c1"})
		}).Methods(http.MethodGet)
	})

	ch, err := c.Challenge(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.Challenge{ID: "c1", Artifact: "<svg/>"}, ch)
	require.Equal(t, "application/json", gotCT)
	_, err = uuid.FromString(gotReqID)
	require.NoError(t, err, "request id must be a uuid")
}

func TestClient_Challenge_Malformed(t *testing.T) {
	t.Parallel()
	c, _ := startServer(t, func(r *mux.Router) {
		r.HandleFunc(PathChallenge, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"svg": "<svg/>"})
		})
	})
	_, err := c.Challenge(context.Background())
	require.ErrorIs(t, err, errs.ErrRemoteRejection)
	require.Equal(t, msgChallenge, errs.Message(err))
}

func TestClient_RemoteErrors(t *testing.T) {
	t.Parallel()
	c, _ := startServer(t, func(r *mux.Router) {
		r.HandleFunc(PathRegisterStage1, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email already registered"})
		})
		r.HandleFunc(PathRegisterStage2, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusGone, map[string]string{"error": "Registration session not found"})
		})
		r.HandleFunc(PathQuestions, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		r.HandleFunc(PathLoginStage2, func(w http.ResponseWriter, r *http.Request) {
			// error inside a 200 envelope
			writeJSON(w, http.StatusOK, map[string]string{"error": "Login session expired"})
		})
		r.HandleFunc(PathCalendar, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		})
		r.HandleFunc(PathReserve, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Date already reserved"})
		})
	})
	ctx := context.Background()

	_, err := c.RegisterStage1(ctx, model.Profile{Name: "n"})
	var re *errs.RemoteError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusBadRequest, re.Status)
	require.Equal(t, "Email already registered", errs.Message(err))
	require.NotErrorIs(t, err, errs.ErrSessionExpired)

	err = c.RegisterStage2(ctx, "R1", nil)
	require.ErrorIs(t, err, errs.ErrSessionExpired)

	_, err = c.Questions(ctx)
	require.ErrorIs(t, err, errs.ErrRemoteRejection)
	require.Equal(t, errs.MsgServerError, errs.Message(err))

	_, err = c.LoginStage2(ctx, "L1", []string{"a"})
	require.ErrorIs(t, err, errs.ErrSessionExpired)
	require.Equal(t, "Login session expired", errs.Message(err))

	_, err = c.Calendar(ctx, "T")
	require.ErrorIs(t, err, errs.ErrUnauthenticated)
	require.Equal(t, "invalid token", errs.Message(err))

	err = c.Reserve(ctx, "T", "1")
	require.ErrorIs(t, err, errs.ErrSlotTaken)
	require.ErrorIs(t, err, errs.ErrRemoteRejection)
	require.Equal(t, "Date already reserved", errs.Message(err))
}

func TestClient_LoginFlowPayloads(t *testing.T) {
	t.Parallel()
	var stage1 map[string]string
	var stage2 struct {
		LoginID string   `json:"loginId"`
		Answers []string `json:"answers"`
	}
	c, _ := startServer(t, func(r *mux.Router) {
		r.HandleFunc(PathLoginStage1, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&stage1)
			writeJSON(w, http.StatusOK, map[string]any{"loginId": "L1", "questions": []string{"Q1", "Q2", "Q3"}})
		}).Methods(http.MethodPost)
		r.HandleFunc(PathLoginStage2, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&stage2)
			writeJSON(w, http.StatusOK, map[string]any{"token": "T", "user": map[string]string{"name": "Sam"}})
		}).Methods(http.MethodPost)
	})
	ctx := context.Background()

	lc, err := c.LoginStage1(ctx, model.Credentials{Username: "u", Password: "p", ChallengeID: "c1", ChallengeAnswer: "x"})
	require.NoError(t, err)
	require.Equal(t, "L1", lc.CorrelationID)
	require.Equal(t, []string{"Q1", "Q2", "Q3"}, lc.Questions)
	require.Equal(t, map[string]string{"username": "u", "password": "p", "captchaId": "c1", "captchaAnswer": "x"}, stage1)

	id, err := c.LoginStage2(ctx, "L1", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, "T", id.Token)
	require.Equal(t, "Sam", id.User.Name)
	require.Equal(t, "L1", stage2.LoginID)
	require.Equal(t, []string{"a", "b", "c"}, stage2.Answers)
}

func TestClient_LoginStage1_Malformed(t *testing.T) {
	t.Parallel()
	c, _ := startServer(t, func(r *mux.Router) {
		r.HandleFunc(PathLoginStage1, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"loginId": "L1"})
		})
	})
	_, err := c.LoginStage1(context.Background(), model.Credentials{})
	require.ErrorIs(t, err, errs.ErrRemoteRejection)
	require.Equal(t, msgLoginStage1, errs.Message(err))
}

func TestClient_CalendarAndReserve(t *testing.T) {
	t.Parallel()
	var auth string
	var reserve map[string]any
	c, _ := startServer(t, func(r *mux.Router) {
		r.HandleFunc(PathCalendar, func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_, _ = io.WriteString(w, `{"months":[{"label":"Jan","days":[{"id":1,"date":"01","status":"available"},{"id":2,"date":"02","status":"reserved","holder":"me"}]}]}`)
		}).Methods(http.MethodGet)
		r.HandleFunc(PathReserve, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&reserve)
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		}).Methods(http.MethodPost)
	})
	ctx := context.Background()

	v, err := c.Calendar(ctx, "T")
	require.NoError(t, err)
	require.Equal(t, "Bearer T", auth)
	require.True(t, v.HasAvailable())
	d, ok := v.Day("2")
	require.True(t, ok)
	require.Equal(t, model.StatusReserved, d.Status)

	require.NoError(t, c.Reserve(ctx, "T", "1"))
	require.Equal(t, map[string]any{"token": "T", "dateId": float64(1)}, reserve)
}

func TestClient_Timeout_IsTransportFailure(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	r.HandleFunc(PathQuestions, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := New(srv.URL, 50*time.Millisecond)
	_, err := c.Questions(context.Background())
	require.ErrorIs(t, err, errs.ErrTransport)
	require.NotErrorIs(t, err, errs.ErrRemoteRejection)
	require.Equal(t, errs.MsgCannotConnect, errs.Message(err))
}

func TestClient_Unreachable_IsTransportFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second)
	_, err := c.Challenge(context.Background())
	require.ErrorIs(t, err, errs.ErrTransport)
	var te *errs.TransportError
	require.True(t, errors.As(err, &te))
	require.Error(t, te.Unwrap())
}

func TestClient_BadJSON_IsTransportFailure(t *testing.T) {
	t.Parallel()
	c, _ := startServer(t, func(r *mux.Router) {
		r.HandleFunc(PathQuestions, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"questions": [1,`)
		})
	})
	_, err := c.Questions(context.Background())
	require.ErrorIs(t, err, errs.ErrTransport)
}
