package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
)

func newTestCache(t *testing.T, handler http.HandlerFunc, opts ...CacheOption) *UpstashRedisCache {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append(opts, WithHTTPClient(server.Client()))
	cache, err := NewUpstashRedisCache(UpstashRedisConfig{URL: server.URL, Token: "token"}, opts...)
	if err != nil {
		t.Fatalf("NewUpstashRedisCache() error = %v", err)
	}
	return cache
}

func TestSaveStateUsesSessionKeyAndTTL(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	cache := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}, WithSessionTTL(90*time.Second))

	err := cache.SaveState(context.Background(), &contractx.ConversationState{SessionID: "s-1"})
	if err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	if len(gotCommand) != 5 {
		t.Fatalf("command = %#v, want SET key value EX ttl", gotCommand)
	}
	if gotCommand[0] != "SET" {
		t.Fatalf("command[0] = %v, want SET", gotCommand[0])
	}
	if gotCommand[1] != "session:s-1" {
		t.Fatalf("command[1] = %v, want session:s-1", gotCommand[1])
	}
	if gotCommand[3] != "EX" {
		t.Fatalf("command[3] = %v, want EX", gotCommand[3])
	}
	// JSON numbers decode as float64.
	if gotCommand[4] != float64(90) {
		t.Fatalf("command[4] = %v, want 90", gotCommand[4])
	}
}

func TestSaveStateNilState(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if err := cache.SaveState(context.Background(), nil); !errors.Is(err, ErrNilState) {
		t.Fatalf("SaveState(nil) error = %v, want ErrNilState", err)
	}
}

func TestLoadStateRoundTrip(t *testing.T) {
	t.Parallel()

	seed := &contractx.ConversationState{
		SessionID:          "s-2",
		StakeholderName:    "Dana",
		CurrentBatchNumber: 3,
		AllAnswers:         []contractx.QuizAnswer{{QuestionID: "q1"}},
	}
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	cache := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	})

	st, err := cache.LoadState(context.Background(), "s-2")
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if gotCommand[1] != "session:s-2" {
		t.Fatalf("command[1] = %v, want session:s-2", gotCommand[1])
	}
	if st.CurrentBatchNumber != 3 || st.StakeholderName != "Dana" {
		t.Fatalf("state did not round-trip: %+v", st)
	}
}

func TestLoadStateMiss(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	})

	_, err := cache.LoadState(context.Background(), "absent")
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("LoadState() error = %v, want ErrCacheMiss", err)
	}
}

func TestLoadStateEmptySessionID(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if _, err := cache.LoadState(context.Background(), "  "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("LoadState() error = %v, want ErrInvalidSession", err)
	}
}

func TestValidateAdminToken(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
		}
		if cmd[1] == "admin:known" {
			fmt.Fprint(w, `{"result":"1"}`)
			return
		}
		fmt.Fprint(w, `{"result":null}`)
	})

	valid, err := cache.ValidateAdminToken(context.Background(), "known")
	if err != nil || !valid {
		t.Fatalf("ValidateAdminToken(known) = %v, %v; want true, nil", valid, err)
	}

	valid, err = cache.ValidateAdminToken(context.Background(), "unknown")
	if err != nil || valid {
		t.Fatalf("ValidateAdminToken(unknown) = %v, %v; want false, nil", valid, err)
	}

	valid, err = cache.ValidateAdminToken(context.Background(), "")
	if err != nil || valid {
		t.Fatalf("ValidateAdminToken(empty) = %v, %v; want false, nil", valid, err)
	}
}

func TestConfigValuesMissIsEmpty(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	})

	val, err := cache.GetConfigValue(context.Background(), "monday_api_key")
	if err != nil {
		t.Fatalf("GetConfigValue() error = %v", err)
	}
	if val != "" {
		t.Fatalf("GetConfigValue() = %q, want empty", val)
	}
}

func TestSetConfigValueHasNoTTL(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	cache := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	})

	if err := cache.SetConfigValue(context.Background(), "monday_api_key", "secret"); err != nil {
		t.Fatalf("SetConfigValue() error = %v", err)
	}
	if len(gotCommand) != 3 {
		t.Fatalf("config SET must not carry a TTL, got %#v", gotCommand)
	}
	if gotCommand[1] != "config:monday_api_key" {
		t.Fatalf("command[1] = %v, want config:monday_api_key", gotCommand[1])
	}
}

func TestTTLSecondsRoundsUp(t *testing.T) {
	t.Parallel()

	if got := ttlSeconds(1500 * time.Millisecond); got != 2 {
		t.Fatalf("ttlSeconds(1.5s) = %d, want 2", got)
	}
	if got := ttlSeconds(2 * time.Hour); got != 7200 {
		t.Fatalf("ttlSeconds(2h) = %d, want 7200", got)
	}
}
