package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	ids := []string{"loan_scam", "government_impersonation", "delivery_scam", "family_impersonation", "messenger_phishing"}
	all := c.All()
	if len(all) != len(ids) {
		t.Fatalf("len=%d, want %d", len(all), len(ids))
	}
	for i, id := range ids {
		if all[i].ID != id {
			t.Fatalf("scenario %d=%s, want %s", i, all[i].ID, id)
		}
		s, err := c.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", id, err)
		}
		if s.Name == "" || len(s.WarningPoints) == 0 {
			t.Fatalf("%s incomplete: %+v", id, s)
		}
	}

	gov, _ := c.Lookup("government_impersonation")
	if gov.Danger() != "high" || len(gov.WarningPoints) != 2 || gov.CallerNumber != "02-1234-5678" {
		t.Fatalf("government_impersonation=%+v", gov)
	}
	msg, _ := c.Lookup("messenger_phishing")
	if msg.Danger() != "low" {
		t.Fatalf("messenger danger=%s", msg.Danger())
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Default().Lookup("lottery_scam"); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("err=%v, want ErrUnknownScenario", err)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Name = "changed"
	if s, _ := c.Lookup(all[0].ID); s.Name == "changed" {
		t.Fatal("All aliases the catalog")
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"missing id": "scenarios:\n  - name: x\n    danger_level: 1\n",
		"duplicate":  "scenarios:\n  - id: a\n    danger_level: 1\n  - id: a\n    danger_level: 2\n",
		"danger":     "scenarios:\n  - id: a\n    danger_level: 5\n",
		"not yaml":   "scenarios: [",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "scenarios:\n  - id: bank_otp\n    name: OTP theft\n    danger_level: 3\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s, err := c.Lookup("bank_otp"); err != nil || s.Danger() != "high" {
		t.Fatalf("bank_otp=%+v, %v", s, err)
	}
	if c, err = Load(""); err != nil || len(c.All()) != 5 {
		t.Fatalf("Load(\"\") gave %v", err)
	}
}
