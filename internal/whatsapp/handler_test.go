package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func TestJidPhoneStripsDomainSuffix(t *testing.T) {
	got := jidPhone("5511999998888@s.whatsapp.net")
	if got != "5511999998888" {
		t.Fatalf("expected bare phone, got %q", got)
	}
}

func TestJidPhoneStripsDeviceSuffix(t *testing.T) {
	got := jidPhone("5511999998888:12@s.whatsapp.net")
	if got != "5511999998888" {
		t.Fatalf("expected device suffix stripped, got %q", got)
	}
}

func TestJidPhonePassesThroughBareNumber(t *testing.T) {
	got := jidPhone("  5511999998888 ")
	if got != "5511999998888" {
		t.Fatalf("expected trimmed number, got %q", got)
	}
}

func TestJidPhoneEmptyInput(t *testing.T) {
	if got := jidPhone(""); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAcceptsValidHMAC(t *testing.T) {
	h := &Handler{webhookSecret: "segredo"}
	body := []byte(`{"from":"5511999998888@s.whatsapp.net"}`)

	if !h.verifySignature(body, signBody("segredo", body)) {
		t.Fatal("expected valid signature to pass")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	h := &Handler{webhookSecret: "segredo"}
	body := []byte(`{}`)

	if h.verifySignature(body, signBody("outro", body)) {
		t.Fatal("expected signature from a different secret to fail")
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	h := &Handler{webhookSecret: "segredo"}
	sig := signBody("segredo", []byte(`{"a":1}`))

	if h.verifySignature([]byte(`{"a":2}`), sig) {
		t.Fatal("expected tampered body to fail verification")
	}
}

func TestVerifySignatureRejectsMalformedHeader(t *testing.T) {
	h := &Handler{webhookSecret: "segredo"}

	if h.verifySignature([]byte(`{}`), "sha256=not-hex") {
		t.Fatal("expected non-hex header to fail")
	}
	if h.verifySignature([]byte(`{}`), "") {
		t.Fatal("expected empty header to fail")
	}
}

func TestVerifySignatureDisabledWithoutSecret(t *testing.T) {
	h := &Handler{}

	if !h.verifySignature([]byte(`{}`), "") {
		t.Fatal("expected verification disabled when no secret is configured")
	}
}

func TestFormatAuthHeaderEncodesPlainCredentials(t *testing.T) {
	got := formatAuthHeader("user:pass")
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFormatAuthHeaderKeepsExistingBasicPrefix(t *testing.T) {
	got := formatAuthHeader("Basic abc123")
	if got != "Basic abc123" {
		t.Fatalf("expected prefixed value untouched, got %q", got)
	}
}
