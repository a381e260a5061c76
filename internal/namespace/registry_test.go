package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Bindings(t *testing.T) {
	r := Default()

	bindings := r.Bindings()
	require.Len(t, bindings, 4)
	assert.Equal(t, Binding{Name: "pcap", Prefix: "/pcap", Bucket: "pcap"}, bindings[0])

	for _, b := range bindings {
		assert.Equal(t, b.Name, b.Bucket, "fixed namespaces map to a bucket of the same name")
	}
	assert.Equal(t, []string{"pcap", "tstat", "pfcpflowmeter", "cicflowmeter"}, r.Buckets())
}

func TestResolve(t *testing.T) {
	r := Default()

	tests := []struct {
		name   string
		bucket string
		ok     bool
	}{
		{"pcap", "pcap", true},
		{"tstat", "tstat", true},
		{"pfcpflowmeter", "pfcpflowmeter", true},
		{"cicflowmeter", "cicflowmeter", true},
		{"unknown", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, ok := r.Resolve(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, bucket)
		})
	}
}

func TestGenericIsIdentity(t *testing.T) {
	r := Default()
	assert.Equal(t, "my-bucket", r.Generic("my-bucket"))
	assert.Equal(t, "pcap", r.Generic("pcap"))
}

func TestBindingsIsACopy(t *testing.T) {
	r := Default()
	b := r.Bindings()
	b[0].Bucket = "changed"

	bucket, _ := r.Resolve("pcap")
	assert.Equal(t, "pcap", bucket)
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		bindings []Binding
	}{
		{"missing bucket", []Binding{{Name: "a", Prefix: "/a"}}},
		{"reserved name", []Binding{{Name: Generic, Prefix: "/g", Bucket: "g"}}},
		{"relative prefix", []Binding{{Name: "a", Prefix: "a", Bucket: "a"}}},
		{"trailing slash", []Binding{{Name: "a", Prefix: "/a/", Bucket: "a"}}},
		{"duplicate name", []Binding{{Name: "a", Prefix: "/a", Bucket: "a"}, {Name: "a", Prefix: "/b", Bucket: "b"}}},
		{"duplicate prefix", []Binding{{Name: "a", Prefix: "/a", Bucket: "a"}, {Name: "b", Prefix: "/a", Bucket: "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.bindings)
			assert.Error(t, err)
		})
	}
}
