package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
)

func createBucketRequest(name string) *http.Request {
	form := url.Values{}
	if name != "" {
		form.Set("bucket_name", name)
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/buckets", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestListBuckets(t *testing.T) {
	server, _ := newTestServer(t, DefaultServerConfig(), []string{"experiments"})

	for _, path := range []string{"/admin", "/admin/"} {
		w := serve(server, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		body := decodeBody(t, w)
		want := []any{"cicflowmeter", "experiments", "pcap", "pfcpflowmeter", "tstat"}
		if !reflect.DeepEqual(body["buckets"], want) {
			t.Errorf("%s: expected %v, got %v", path, want, body["buckets"])
		}
	}
}

func TestListBucketsEmpty(t *testing.T) {
	server := NewServer(DefaultServerConfig(), newMemStore(), nil, WithLogger(quietLogger()))

	w := serve(server, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"buckets":[]}` {
		t.Errorf("Expected empty list, got %s", w.Body.String())
	}
}

func TestListBucketsStoreFailure(t *testing.T) {
	server, store := newTestServer(t, DefaultServerConfig(), nil)
	store.fail(engineDown())

	w := serve(server, httptest.NewRequest(http.MethodGet, "/admin", nil))
	expectDetail(t, w, http.StatusInternalServerError, "Error listing buckets")
}

func TestCreateBucket(t *testing.T) {
	server, store := newTestServer(t, DefaultServerConfig(), nil)

	w := serve(server, createBucketRequest("experiments"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["message"] != "Bucket 'experiments' created successfully" {
		t.Errorf("Unexpected body %v", body)
	}
	if ok, _ := store.BucketExists(t.Context(), "experiments"); !ok {
		t.Fatal("bucket was not created")
	}

	w = serve(server, createBucketRequest("experiments"))
	expectDetail(t, w, http.StatusBadRequest, "Bucket already exists")

	// Fixed namespace buckets are ordinary buckets to the admin API
	w = serve(server, createBucketRequest("pcap"))
	expectDetail(t, w, http.StatusBadRequest, "Bucket already exists")
}

func TestCreateBucketValidation(t *testing.T) {
	server, _ := newTestServer(t, DefaultServerConfig(), nil)

	w := serve(server, createBucketRequest(""))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != "VALIDATION_FAILED" {
		t.Errorf("Unexpected code %v", body["code"])
	}
}

func TestCreateBucketStoreFailure(t *testing.T) {
	server, store := newTestServer(t, DefaultServerConfig(), nil)
	store.fail(engineDown())

	w := serve(server, createBucketRequest("experiments"))
	expectDetail(t, w, http.StatusInternalServerError, "Error creating bucket")
}

func TestDeleteBucket(t *testing.T) {
	server, store := newTestServer(t, DefaultServerConfig(), []string{"scratch"})

	w := serve(server, httptest.NewRequest(http.MethodDelete, "/admin/buckets/scratch", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["message"] != "Bucket 'scratch' deleted successfully" {
		t.Errorf("Unexpected body %v", body)
	}
	if ok, _ := store.BucketExists(t.Context(), "scratch"); ok {
		t.Error("bucket still exists")
	}

	w = serve(server, httptest.NewRequest(http.MethodDelete, "/admin/buckets/scratch", nil))
	expectDetail(t, w, http.StatusNotFound, "Bucket not found")
}

func TestDeleteBucketNotEmpty(t *testing.T) {
	server, store := newTestServer(t, DefaultServerConfig(), []string{"scratch"})
	serve(server, uploadRequest(t, "/scratch/files", "keep.csv", []byte("x"), ""))

	w := serve(server, httptest.NewRequest(http.MethodDelete, "/admin/buckets/scratch", nil))
	expectDetail(t, w, http.StatusBadRequest, "Bucket is not empty")

	if keys := store.objectKeys("scratch"); !reflect.DeepEqual(keys, []string{"keep.csv"}) {
		t.Errorf("Objects must survive a refused delete, got %v", keys)
	}

	// Emptying it first allows the delete
	serve(server, httptest.NewRequest(http.MethodDelete, "/scratch/files/keep.csv", nil))
	w = serve(server, httptest.NewRequest(http.MethodDelete, "/admin/buckets/scratch", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 after emptying, got %d", w.Code)
	}
}

func TestDeleteBucketStoreFailure(t *testing.T) {
	server, store := newTestServer(t, DefaultServerConfig(), []string{"scratch"})
	store.fail(engineDown())

	w := serve(server, httptest.NewRequest(http.MethodDelete, "/admin/buckets/scratch", nil))
	expectDetail(t, w, http.StatusInternalServerError, "Error deleting bucket")
}
