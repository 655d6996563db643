// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
	"github.com/opendtn/dtn7-core/pkg/cbor"
	"github.com/opendtn/dtn7-core/pkg/reassembly"
	"github.com/opendtn/dtn7-core/pkg/storage"
)

type restFixture struct {
	sync.Mutex

	store   *storage.Store
	server  *httptest.Server
	bundles []*bpv7.Bundle
	err     error
}

func newRestFixture(t *testing.T) *restFixture {
	dir, err := os.MkdirTemp("", "rest")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	store, err := storage.NewStore(dir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	f := &restFixture{store: store}

	ra := NewRestAgent(store, func(b *bpv7.Bundle) error {
		f.Lock()
		defer f.Unlock()

		if f.err != nil {
			return f.err
		}
		f.bundles = append(f.bundles, b)
		return nil
	})
	ra.SetMaxBundleSize(4096)

	f.server = httptest.NewServer(http.StripPrefix("/rest", ra))
	t.Cleanup(f.server.Close)

	return f
}

func (f *restFixture) url(path string) string {
	return f.server.URL + "/rest" + path
}

func TestRestAgentBundle(t *testing.T) {
	f := newRestFixture(t)

	b := createBundle("dtn://src/", "dtn://dst/", []byte("hello world"), t)
	data, err := b.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(f.url("/bundle"), "application/cbor", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}

	var response RestBundleResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		t.Fatal(err)
	} else if response.Error != "" {
		t.Fatal(response.Error)
	} else if response.BundleId != b.ID().String() {
		t.Fatalf("expected bundle id %s, got %s", b.ID(), response.BundleId)
	}

	f.Lock()
	defer f.Unlock()
	if len(f.bundles) != 1 {
		t.Fatalf("expected one submitted bundle, got %d", len(f.bundles))
	} else if payload, err := f.bundles[0].Payload(); err != nil || string(payload) != "hello world" {
		t.Fatalf("unexpected payload %q, %v", payload, err)
	}
}

func TestRestAgentBundleInvalid(t *testing.T) {
	f := newRestFixture(t)

	b := createBundle("dtn://src/", "dtn://dst/", []byte("hello world"), t)
	data, err := b.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		body   []byte
		status int
	}{
		{"empty", []byte{}, http.StatusBadRequest},
		{"partial", data[:len(data)-1], http.StatusBadRequest},
		{"trailing", append(append([]byte{}, data...), 0x00), http.StatusBadRequest},
		{"no bundle", []byte{0x01}, http.StatusBadRequest},
		{"too large", bytes.Repeat([]byte{0x00}, 8192), http.StatusRequestEntityTooLarge},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp, err := http.Post(f.url("/bundle"), "application/cbor", bytes.NewReader(test.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			var response RestBundleResponse
			if resp.StatusCode != test.status {
				t.Fatalf("expected status %d, got %d", test.status, resp.StatusCode)
			} else if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
				t.Fatal(err)
			} else if response.Error == "" || response.BundleId != "" {
				t.Fatalf("unexpected response %v", response)
			}
		})
	}

	f.Lock()
	defer f.Unlock()
	if len(f.bundles) != 0 {
		t.Fatalf("invalid bundles were submitted: %v", f.bundles)
	}
}

func TestRestAgentBundleSubmitError(t *testing.T) {
	f := newRestFixture(t)

	data, err := createBundle("dtn://src/", "dtn://dst/", []byte("hello"), t).Marshal()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		err    error
		status int
	}{
		{reassembly.ErrLockTimeout, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", reassembly.ErrLockTimeout), http.StatusServiceUnavailable},
		{reassembly.ErrClosed, http.StatusInternalServerError},
	}

	for _, test := range tests {
		f.Lock()
		f.err = test.err
		f.Unlock()

		resp, err := http.Post(f.url("/bundle"), "application/cbor", bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != test.status {
			t.Fatalf("%v: expected status %d, got %d", test.err, test.status, resp.StatusCode)
		}
	}
}

func TestRestAgentPayloads(t *testing.T) {
	f := newRestFixture(t)

	pi, err := f.store.Push([]byte("hello world"), "dtn://src/", "dtn://dst/")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.Push([]byte("other"), "dtn://src/", "dtn://other/"); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(f.url("/payloads/" + url.PathEscape("dtn://dst/")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var response RestPayloadsResponse
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	} else if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		t.Fatal(err)
	} else if len(response.Payloads) != 1 {
		t.Fatalf("expected one payload, got %v", response.Payloads)
	} else if p := response.Payloads[0]; p.Id != pi.Id || p.Source != "dtn://src/" || p.Size != len("hello world") {
		t.Fatalf("unexpected payload %v", p)
	}

	// Fetch the payload's content
	resp, err = http.Get(f.url("/payload/" + pi.Id))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if data, err := io.ReadAll(resp.Body); err != nil {
		t.Fatal(err)
	} else if resp.StatusCode != http.StatusOK || string(data) != "hello world" {
		t.Fatalf("unexpected response %d: %q", resp.StatusCode, data)
	}

	// Delete the payload
	req, err := http.NewRequest(http.MethodDelete, f.url("/payload/"+pi.Id), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	} else if f.store.KnowsPayload(pi.Id) {
		t.Fatal("payload was not deleted")
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		req, err := http.NewRequest(method, f.url("/payload/"+pi.Id), nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected status %d, got %d", method, http.StatusNotFound, resp.StatusCode)
		}
	}
}

func TestRestAgentPayloadsEmpty(t *testing.T) {
	f := newRestFixture(t)

	resp, err := http.Get(f.url("/payloads/" + url.PathEscape("dtn://nobody/")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var response RestPayloadsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		t.Fatal(err)
	} else if response.Error != "" || len(response.Payloads) != 0 {
		t.Fatalf("unexpected response %v", response)
	}
}

func TestRestAgentDecoderLimits(t *testing.T) {
	f := newRestFixture(t)

	ra := NewRestAgent(f.store, func(b *bpv7.Bundle) error {
		t.Errorf("bundle %v exceeding the limits was submitted", b.ID())
		return nil
	})
	ra.SetDecoder(bpv7.NewDecoder(cbor.Limits{StringSize: 4}))

	server := httptest.NewServer(ra)
	defer server.Close()

	data, err := createBundle("dtn://src/", "dtn://dst/", []byte("hello world"), t).Marshal()
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(server.URL+"/bundle", "application/cbor", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}
