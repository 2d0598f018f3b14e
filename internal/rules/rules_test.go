package rules

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stx-tools/configcheck/internal/coerce"
	"github.com/stx-tools/configcheck/internal/ini"
	"github.com/stx-tools/configcheck/internal/report"
	"github.com/stx-tools/configcheck/internal/schema"
)

func typedDoc(t *testing.T, src string) *coerce.TypedDocument {
	t.Helper()
	reg := schema.Default()
	doc, err := ini.Parse("test.ini", []byte(src), reg)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	var b report.Builder
	return coerce.Coerce(doc, reg, b.Stage(report.StageCoerce))
}

func ref(s string) schema.FieldRef {
	r, err := schema.ParseFieldRef(s)
	if err != nil {
		panic(err)
	}
	return r
}

type summary struct {
	At      string
	Related []string
	Message string
}

func summarize(issues []report.Issue) []summary {
	var out []summary
	for _, i := range issues {
		s := summary{At: i.Location.String(), Message: i.Message}
		for _, r := range i.Related {
			s.Related = append(s.Related, r.String())
		}
		out = append(out, s)
	}
	return out
}

func TestReference(t *testing.T) {
	doc := typedDoc(t, `[interface]
name = mgmt0
[interface]
name = oam0
[host]
hostname = controller-0
mgmt_interface = mgmt0
[host]
hostname = controller-1
mgmt_interface = eth9
`)
	rule := &Reference{RuleName: "r", From: ref("host.mgmt_interface"), To: ref("interface.name")}
	want := []summary{{
		At:      "host[2].mgmt_interface (line 10)",
		Related: []string{"interface[1].name (line 2)", "interface[2].name (line 4)"},
		Message: `host.mgmt_interface "eth9" does not match any interface.name`,
	}}
	if diff := cmp.Diff(want, summarize(rule.Check(doc))); diff != "" {
		t.Errorf("Check() mismatch (-want +got):\n%s", diff)
	}
}

func TestReference_NoTargetSection(t *testing.T) {
	doc := typedDoc(t, "[mgmt_network]\ninterface = mgmt0\n")
	rule := &Reference{RuleName: "r", From: ref("mgmt_network.interface"), To: ref("interface.name")}
	issues := rule.Check(doc)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if !strings.Contains(issues[0].Message, "no [interface] section is present") {
		t.Errorf("unexpected message %q", issues[0].Message)
	}
}

func TestOverlap(t *testing.T) {
	const mgmtFirst = `[mgmt_network]
cidr = 10.0.0.0/24
[oam_network]
cidr = 10.0.0.128/25
[cluster_network]
cidr = 192.168.0.0/16
`
	const oamFirst = `[oam_network]
cidr = 10.0.0.128/25
[mgmt_network]
cidr = 10.0.0.0/24
[cluster_network]
cidr = 192.168.0.0/16
`
	rule := &Overlap{RuleName: "o", Fields: []schema.FieldRef{
		ref("mgmt_network.cidr"), ref("oam_network.cidr"), ref("cluster_network.cidr"),
	}}

	got := summarize(rule.Check(typedDoc(t, mgmtFirst)))
	want := []summary{{
		At:      "mgmt_network.cidr (line 2)",
		Related: []string{"oam_network.cidr (line 4)"},
		Message: "10.0.0.0/24 overlaps 10.0.0.128/25 at oam_network.cidr (line 4)",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mgmt first mismatch (-want +got):\n%s", diff)
	}

	swapped := rule.Check(typedDoc(t, oamFirst))
	if len(swapped) != 1 {
		t.Fatalf("swapped order: got %d issues, want 1", len(swapped))
	}
	cited := map[string]bool{swapped[0].Section: true, swapped[0].Related[0].Section: true}
	if !cited["mgmt_network"] || !cited["oam_network"] {
		t.Errorf("swapped order does not cite both sections: %+v", swapped[0])
	}
}

func TestOverlap_EveryPair(t *testing.T) {
	doc := typedDoc(t, `[pxeboot_network]
cidr = 10.0.0.0/8
[mgmt_network]
cidr = 10.1.0.0/16
multicast_cidr = 10.1.2.0-10.1.2.15
[oam_network]
cidr = 172.16.0.0/24
`)
	rule := &Overlap{RuleName: "o", Fields: []schema.FieldRef{
		ref("pxeboot_network.cidr"), ref("mgmt_network.cidr"), ref("mgmt_network.multicast_cidr"), ref("oam_network.cidr"),
	}}
	if got := len(rule.Check(doc)); got != 3 {
		t.Errorf("got %d overlap issues, want 3", got)
	}
}

func TestCount(t *testing.T) {
	doc := typedDoc(t, `[system]
hosts_count = 3
[host]
hostname = a
[host]
hostname = b
`)
	rule := &Count{RuleName: "c", Field: ref("system.hosts_count"), Section: "host"}
	issues := rule.Check(doc)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if !strings.Contains(issues[0].Message, "expected 3, found 2") {
		t.Errorf("message %q does not state expected and found counts", issues[0].Message)
	}
	if issues[0].Line != 2 || len(issues[0].Related) != 2 {
		t.Errorf("unexpected location %+v", issues[0])
	}

	ok := typedDoc(t, "[system]\nhosts_count = 1\n[host]\nhostname = a\n")
	if got := rule.Check(ok); len(got) != 0 {
		t.Errorf("unexpected issues: %v", summarize(got))
	}
}

func TestExclusive(t *testing.T) {
	doc := typedDoc(t, `[interface]
name = vlan10
ports = eth0
lower = eth1
[interface]
name = eth0
ports = eth0
`)
	rule := &Exclusive{RuleName: "x", Section: "interface", Keys: []string{"ports", "lower"}}
	want := []summary{{
		At:      "interface[1].lower (line 4)",
		Related: []string{"interface[1].ports (line 3)"},
		Message: "lower conflicts with ports: only one of ports, lower may be set",
	}}
	if diff := cmp.Diff(want, summarize(rule.Check(doc))); diff != "" {
		t.Errorf("Check() mismatch (-want +got):\n%s", diff)
	}
}

func TestRequires(t *testing.T) {
	doc := typedDoc(t, `[host]
hostname = a
bmc_address = 10.0.0.9
bmc_username = root
[host]
hostname = b
`)
	rule := &Requires{RuleName: "q", Section: "host", Key: "bmc_address", Needs: []string{"bmc_username", "bmc_password"}}
	want := []summary{{
		At:      "host[1].bmc_address (line 3)",
		Message: "bmc_address is set but bmc_password is missing",
	}}
	if diff := cmp.Diff(want, summarize(rule.Check(doc))); diff != "" {
		t.Errorf("Check() mismatch (-want +got):\n%s", diff)
	}
}

func TestUnique(t *testing.T) {
	doc := typedDoc(t, "[interface]\nname = eth0\n[interface]\nname = eth1\n[interface]\nname = eth0\n")
	rule := &Unique{RuleName: "u", Field: ref("interface.name")}
	want := []summary{{
		At:      "interface[3].name (line 6)",
		Related: []string{"interface[1].name (line 2)"},
		Message: `duplicate interface.name "eth0", already used at interface[1].name (line 2)`,
	}}
	if diff := cmp.Diff(want, summarize(rule.Check(doc))); diff != "" {
		t.Errorf("Check() mismatch (-want +got):\n%s", diff)
	}
}

func TestContains(t *testing.T) {
	doc := typedDoc(t, `[mgmt_network]
cidr = 192.168.204.0/24
gateway = 192.168.205.1
[host]
hostname = a
mgmt_address = 192.168.204.10
[host]
hostname = b
mgmt_address = 192.168.100.10
`)
	rule := &Contains{RuleName: "in", Fields: []schema.FieldRef{ref("mgmt_network.gateway"), ref("host.mgmt_address")}, Within: ref("mgmt_network.cidr")}
	want := []summary{
		{
			At:      "mgmt_network.gateway (line 3)",
			Related: []string{"mgmt_network.cidr (line 2)"},
			Message: "mgmt_network.gateway 192.168.205.1 is outside mgmt_network.cidr 192.168.204.0/24",
		},
		{
			At:      "host[2].mgmt_address (line 9)",
			Related: []string{"mgmt_network.cidr (line 2)"},
			Message: "host.mgmt_address 192.168.100.10 is outside mgmt_network.cidr 192.168.204.0/24",
		},
	}
	if diff := cmp.Diff(want, summarize(rule.Check(doc))); diff != "" {
		t.Errorf("Check() mismatch (-want +got):\n%s", diff)
	}
}

func TestSameFamily(t *testing.T) {
	doc := typedDoc(t, `[storage]
backend = ceph
ceph_mon_0_address = 10.0.0.1
ceph_mon_1_address = fd00::2
ceph_mon_2_address = 10.0.0.3
`)
	rule := &SameFamily{RuleName: "f", Fields: []schema.FieldRef{
		ref("storage.ceph_mon_0_address"), ref("storage.ceph_mon_1_address"), ref("storage.ceph_mon_2_address"),
	}}
	want := []summary{{
		At:      "storage.ceph_mon_1_address (line 4)",
		Related: []string{"storage.ceph_mon_0_address (line 3)"},
		Message: "storage.ceph_mon_1_address fd00::2 is IPv6 but storage.ceph_mon_0_address 10.0.0.1 is IPv4",
	}}
	if diff := cmp.Diff(want, summarize(rule.Check(doc))); diff != "" {
		t.Errorf("Check() mismatch (-want +got):\n%s", diff)
	}
}

func TestSet_RunIsDeterministic(t *testing.T) {
	reg := schema.Default()
	set, err := FromSchema(reg)
	if err != nil {
		t.Fatalf("FromSchema() failed: %v", err)
	}
	doc := typedDoc(t, `[system]
hosts_count = 4
[interface]
name = eth0
[interface]
name = eth0
[mgmt_network]
cidr = 10.0.0.0/24
interface = eth7
[oam_network]
cidr = 10.0.0.0/25
interface = eth8
`)
	first := set.Run(doc)
	if len(first) == 0 {
		t.Fatal("expected issues")
	}
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, set.Run(doc)); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
	for _, issue := range first {
		if issue.Rule == "" || issue.Class != report.ClassCrossField {
			t.Errorf("issue not tagged: %+v", issue)
		}
	}
}

func TestSet_RejectsDuplicateNames(t *testing.T) {
	_, err := NewSet(&Unique{RuleName: "a"}, &Unique{RuleName: "a"})
	if err == nil {
		t.Error("expected error for duplicate rule names")
	}
}

func TestFromSchema_Errors(t *testing.T) {
	base := `[[section]]
name = "net"
  [[section.key]]
  name = "cidr"
  kind = "address-range"
`
	tests := []struct {
		name    string
		rule    string
		wantErr string
	}{
		{name: "unknown kind", rule: "[[rule]]\nname = \"x\"\nkind = \"magic\"\n", wantErr: "unknown rule kind"},
		{name: "unknown field", rule: "[[rule]]\nname = \"x\"\nkind = \"unique\"\nfield = \"net.mask\"\n", wantErr: "unknown key net.mask"},
		{name: "missing name", rule: "[[rule]]\nkind = \"unique\"\nfield = \"net.cidr\"\n", wantErr: "missing name"},
		{name: "overlap single field", rule: "[[rule]]\nname = \"x\"\nkind = \"overlap\"\nfields = [\"net.cidr\"]\n", wantErr: "at least 2"},
		{name: "count unknown section", rule: "[[rule]]\nname = \"x\"\nkind = \"count\"\nfield = \"net.cidr\"\nsection = \"host\"\n", wantErr: "unknown section"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := schema.Load([]byte(base + tt.rule))
			if err != nil {
				t.Fatalf("schema load failed: %v", err)
			}
			_, err = FromSchema(reg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("FromSchema() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
