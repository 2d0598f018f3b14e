package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mapScope map[string]any

func (m mapScope) Field(section, key string) (any, bool) {
	if section != "" {
		key = section + "." + key
	}
	v, ok := m[key]
	return v, ok
}

func TestDefault(t *testing.T) {
	reg := Default()

	var names []string
	for _, s := range reg.Sections() {
		names = append(names, s.Name)
	}
	want := []string{
		"system", "interface", "pxeboot_network", "mgmt_network",
		"cluster_network", "oam_network", "host", "storage", "authentication",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Sections() mismatch (-want +got):\n%s", diff)
	}

	if _, ok := reg.Lookup("no_such_section"); ok {
		t.Error("Lookup of unknown section reported ok")
	}
	if !reg.AllowsRepeat("authentication", "dns_servers") {
		t.Error("dns_servers should allow repetition")
	}
	if reg.AllowsRepeat("system", "name") {
		t.Error("system.name should not allow repetition")
	}
	if len(reg.Rules()) == 0 {
		t.Error("default schema declares no rules")
	}
}

func TestEntry_Required(t *testing.T) {
	reg := Default()

	vlan, _ := reg.Entry("interface", "vlan_id")
	if vlan.Required(mapScope{"type": "ethernet"}) {
		t.Error("vlan_id required for ethernet")
	}
	if !vlan.Required(mapScope{"type": "vlan"}) {
		t.Error("vlan_id not required for vlan")
	}
	if vlan.Required(mapScope{}) {
		t.Error("vlan_id required when type is unknown")
	}

	unit, _ := reg.Entry("oam_network", "unit_1_address")
	if !unit.Required(mapScope{"system.mode": "duplex"}) {
		t.Error("unit_1_address not required in duplex mode")
	}
	if unit.Required(mapScope{"system.mode": "simplex"}) {
		t.Error("unit_1_address required in simplex mode")
	}

	name, _ := reg.Entry("system", "name")
	if !name.Required(mapScope{}) {
		t.Error("system.name should always be required")
	}
}

func TestRegisterPredicate(t *testing.T) {
	reg := Default()
	err := reg.RegisterPredicate("host", "bmc_username", func(s Scope) bool {
		_, ok := s.Field("", "bmc_address")
		return ok
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, _ := reg.Entry("host", "bmc_username")
	if !e.Required(mapScope{"bmc_address": "10.0.0.1"}) {
		t.Error("custom predicate not applied")
	}
	if err := reg.RegisterPredicate("host", "nope", nil); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "unknown kind",
			data:    "[[section]]\nname = \"a\"\n[[section.key]]\nname = \"k\"\nkind = \"float\"\n",
			wantErr: "unknown kind",
		},
		{
			name:    "conditional without when",
			data:    "[[section]]\nname = \"a\"\n[[section.key]]\nname = \"k\"\nkind = \"string\"\npresence = \"conditional\"\n",
			wantErr: "needs a when clause",
		},
		{
			name: "forward reference in section",
			data: `[[section]]
name = "a"
[[section.key]]
name = "x"
kind = "string"
presence = "conditional"
when = { key = "y", in = ["1"] }
[[section.key]]
name = "y"
kind = "string"
`,
			wantErr: "not declared earlier in the section",
		},
		{
			name: "forward reference to section",
			data: `[[section]]
name = "a"
[[section.key]]
name = "x"
kind = "string"
presence = "conditional"
when = { section = "b", key = "y", in = ["1"] }
[[section]]
name = "b"
[[section.key]]
name = "y"
kind = "string"
`,
			wantErr: "not declared earlier",
		},
		{
			name:    "duplicate section",
			data:    "[[section]]\nname = \"a\"\n[[section]]\nname = \"A\"\n",
			wantErr: "declared twice",
		},
		{
			name:    "list without element",
			data:    "[[section]]\nname = \"a\"\n[[section.key]]\nname = \"k\"\nkind = \"list\"\n",
			wantErr: "scalar element kind",
		},
		{
			name:    "unknown attribute",
			data:    "[[section]]\nname = \"a\"\ncolour = \"red\"\n",
			wantErr: "unknown schema attributes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.toml")
	data := `[[section]]
name = "Site"
presence = "required"

  [[section.key]]
  name = "Region"
  kind = "identifier"
  presence = "required"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := reg.Entry("site", "region"); !ok {
		t.Error("names were not lower-cased")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseFieldRef(t *testing.T) {
	ref, err := ParseFieldRef("MGMT_Network.CIDR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(FieldRef{Section: "mgmt_network", Key: "cidr"}, ref); diff != "" {
		t.Errorf("ParseFieldRef() mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"", "cidr", ".cidr", "mgmt."} {
		if _, err := ParseFieldRef(bad); err == nil {
			t.Errorf("ParseFieldRef(%q) succeeded", bad)
		}
	}
}
