package monday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestSearchBoardsFiltersByName(t *testing.T) {
	t.Parallel()

	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":{"boards":[{"id":"1","name":"Acme Rollout"},{"id":"2","name":"Internal Ops"}]}}`)
	})

	boards, err := client.SearchBoards(context.Background(), "key-123", "acme")
	if err != nil {
		t.Fatalf("SearchBoards() error = %v", err)
	}
	if gotAuth != "key-123" {
		t.Fatalf("Authorization = %q, want the raw api key", gotAuth)
	}
	if len(boards) != 1 || boards[0].ID != "1" {
		t.Fatalf("boards = %+v, want only the Acme board", boards)
	}
}

func TestSearchBoardsEmptyTermReturnsAll(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"boards":[{"id":"1","name":"A"},{"id":"2","name":"B"}]}}`)
	})

	boards, err := client.SearchBoards(context.Background(), "key", "  ")
	if err != nil {
		t.Fatalf("SearchBoards() error = %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("boards = %d, want 2", len(boards))
	}
}

func TestQueryRequiresAPIKey(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if _, err := client.SearchBoards(context.Background(), " ", "x"); err == nil {
		t.Fatal("SearchBoards() must fail without an api key")
	}
}

func TestBoardItemsSendsVariables(t *testing.T) {
	t.Parallel()

	var gotBody struct {
		Variables map[string]any `json:"variables"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"data":{"boards":[{"items_page":{"items":[{"id":"10","name":"Kickoff"}]}}]}}`)
	})

	items, err := client.BoardItems(context.Background(), "key", "board-7")
	if err != nil {
		t.Fatalf("BoardItems() error = %v", err)
	}
	if len(items) != 1 || items[0].Name != "Kickoff" {
		t.Fatalf("items = %+v", items)
	}

	ids, _ := gotBody.Variables["boardId"].([]any)
	if len(ids) != 1 || ids[0] != "board-7" {
		t.Fatalf("boardId variable = %v", gotBody.Variables["boardId"])
	}
}

func TestItemDetailsAbsentItem(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"items":[]}}`)
	})

	item, err := client.ItemDetails(context.Background(), "key", "404")
	if err != nil {
		t.Fatalf("ItemDetails() error = %v", err)
	}
	if item != nil {
		t.Fatalf("item = %+v, want nil for absent item", item)
	}
}

func TestQuerySurfacesGraphQLErrors(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"invalid token"}]}`)
	})

	_, err := client.SearchBoards(context.Background(), "key", "x")
	if err == nil || !strings.Contains(err.Error(), "invalid token") {
		t.Fatalf("error = %v, want graphql error surfaced", err)
	}
}

func TestExtractContext(t *testing.T) {
	t.Parallel()

	item := &Item{
		Name: "Acme Rollout",
		ColumnValues: []ColumnValue{
			{ID: "status", Title: "Status", Text: "In Progress"},
			{ID: "empty", Title: "Notes", Text: "  "},
		},
		Updates: []Update{
			{TextBody: "Kickoff went well"},
			{TextBody: "Phase 2 delayed"},
		},
	}

	got := ExtractContext(item)
	want := "Project: Acme Rollout\nStatus: In Progress\n\nRecent Updates:\n- Kickoff went well\n- Phase 2 delayed"
	if got != want {
		t.Fatalf("ExtractContext() = %q, want %q", got, want)
	}

	if ExtractContext(nil) != "" {
		t.Fatal("nil item must flatten to empty string")
	}
}

func TestExtractContextCapsUpdates(t *testing.T) {
	t.Parallel()

	item := &Item{Name: "P"}
	for i := 0; i < 8; i++ {
		item.Updates = append(item.Updates, Update{TextBody: fmt.Sprintf("update %d", i)})
	}

	got := ExtractContext(item)
	if strings.Count(got, "- update") != 5 {
		t.Fatalf("want at most 5 updates, got:\n%s", got)
	}
}
