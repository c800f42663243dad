package signature

import (
	"strings"
	"testing"
)

func TestSignVerify(t *testing.T) {
	t.Parallel()

	body := []byte(`{"uid":"u1"}`)
	sig := Sign("s3cret", body)
	if !strings.HasPrefix(sig, "sha256=") || len(sig) != len("sha256=")+64 {
		t.Fatalf("Sign = %q, want sha256=<64 hex>", sig)
	}
	if !Verify("s3cret", body, sig) {
		t.Error("Verify rejected a valid signature")
	}
	if Verify("other", body, sig) {
		t.Error("Verify accepted a signature made with another secret")
	}
	if Verify("s3cret", []byte(`{"uid":"u2"}`), sig) {
		t.Error("Verify accepted a signature for a different payload")
	}
}
