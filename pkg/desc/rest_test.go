package desc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/newtron-network/ctlsh/pkg/command"
	"github.com/newtron-network/ctlsh/pkg/store"
)

// controller serves model tables read-only and counts the GETs per table.
type controller struct {
	mu     sync.Mutex
	tables map[string][]store.Row
	gets   map[string]int
}

func (c *controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	table := strings.Trim(strings.TrimPrefix(r.URL.Path, "/rest/v1/model/"), "/")
	c.gets[table]++
	rows := c.tables[table]
	if rows == nil {
		rows = []store.Row{}
	}
	json.NewEncoder(w).Encode(rows)
}

func (c *controller) count(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets[table]
}

func TestExecute_ClearsRESTCacheBetweenCommands(t *testing.T) {
	ctl := &controller{
		tables: map[string][]store.Row{
			"snmp-server-config": {{"id": "snmp", "server-enable": true, "community": "public"}},
		},
		gets: make(map[string]int),
	}
	srv := httptest.NewServer(ctl)
	t.Cleanup(srv.Close)

	backend := store.NewRESTBackend(store.RESTConfig{Controller: srv.URL, CacheTTL: 2 * time.Second})
	defer backend.Close()
	var out bytes.Buffer
	e, err := NewEngine(command.Options{
		Backend: backend,
		Out:     &out,
		Warner:  command.WarnerFunc(func(string) {}),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	sess := command.NewSession("tester")

	for i := 1; i <= 2; i++ {
		if err := e.Execute(context.Background(), sess, "show snmp"); err != nil {
			t.Fatalf("show snmp #%d: %v", i, err)
		}
		if got := ctl.count("snmp-server-config"); got != i {
			t.Errorf("after show snmp #%d: %d GETs of snmp-server-config, want %d", i, got, i)
		}
	}
	if !strings.Contains(out.String(), "public") {
		t.Errorf("show snmp output:\n%s", out.String())
	}

	// Reads outside a command are served from the cache.
	if _, err := backend.Query(context.Background(), "snmp-server-config", nil); err != nil {
		t.Fatal(err)
	}
	if got := ctl.count("snmp-server-config"); got != 2 {
		t.Errorf("cached read went to the controller: %d GETs", got)
	}
}
