package coerce

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"go4.org/netipx"

	"github.com/stx-tools/configcheck/internal/schema"
)

var (
	integerPattern    = regexp.MustCompile(`^[+-]?[0-9]+$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

var booleans = map[string]bool{
	"yes": true, "y": true, "true": true, "1": true, "on": true,
	"no": false, "n": false, "false": false, "0": false, "off": false,
}

// TypeError describes a value that could not be decoded into its kind.
type TypeError struct {
	Kind   schema.Kind
	Value  string
	Reason string
}

func (e *TypeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s %q", e.Kind, e.Value)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.Value, e.Reason)
}

// AddressRange is a contiguous block of addresses, written either as a
// CIDR prefix or as an explicit from-to range.
type AddressRange struct {
	Prefix netip.Prefix // zero unless written in CIDR form
	Range  netipx.IPRange
}

func (r AddressRange) String() string {
	if r.Prefix.IsValid() {
		return r.Prefix.String()
	}
	return r.Range.String()
}

// Overlaps reports whether r and o share at least one address.
func (r AddressRange) Overlaps(o AddressRange) bool {
	return r.Range.Overlaps(o.Range)
}

// Contains reports whether addr lies inside r.
func (r AddressRange) Contains(addr netip.Addr) bool {
	return r.Range.Contains(addr)
}

func decode(e *schema.Entry, raw string) (any, error) {
	if raw == "" {
		return nil, &TypeError{Kind: e.Kind, Value: raw, Reason: "empty value"}
	}
	if e.Kind != schema.KindList {
		return decodeScalar(e, e.Kind, raw)
	}

	parts := strings.Split(raw, e.Separator)
	list := make([]any, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, &TypeError{Kind: e.Kind, Value: raw, Reason: fmt.Sprintf("element %d is empty", i+1)}
		}
		v, err := decodeScalar(e, e.Element, p)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func decodeScalar(e *schema.Entry, kind schema.Kind, raw string) (any, error) {
	switch kind {
	case schema.KindInteger:
		return decodeInteger(e, raw)
	case schema.KindBoolean:
		b, ok := booleans[strings.ToLower(raw)]
		if !ok {
			return nil, &TypeError{Kind: kind, Value: raw, Reason: "want yes/no, true/false, on/off or 1/0"}
		}
		return b, nil
	case schema.KindAddress:
		return decodeAddress(raw)
	case schema.KindAddressRange:
		return decodeRange(raw)
	case schema.KindIdentifier:
		if !identifierPattern.MatchString(raw) {
			return nil, &TypeError{Kind: kind, Value: raw, Reason: "only letters, digits, '-' and '_' are allowed"}
		}
		return raw, checkEnum(e, kind, raw)
	case schema.KindString:
		return raw, checkEnum(e, kind, raw)
	}
	return nil, &TypeError{Kind: kind, Value: raw, Reason: "unsupported kind"}
}

func decodeInteger(e *schema.Entry, raw string) (any, error) {
	if !integerPattern.MatchString(raw) {
		return nil, &TypeError{Kind: schema.KindInteger, Value: raw, Reason: "want decimal digits with an optional sign"}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &TypeError{Kind: schema.KindInteger, Value: raw, Reason: "out of range"}
	}
	if e.Min != nil && n < *e.Min {
		return nil, &TypeError{Kind: schema.KindInteger, Value: raw, Reason: fmt.Sprintf("must be at least %d", *e.Min)}
	}
	if e.Max != nil && n > *e.Max {
		return nil, &TypeError{Kind: schema.KindInteger, Value: raw, Reason: fmt.Sprintf("must be at most %d", *e.Max)}
	}
	return n, nil
}

func decodeAddress(raw string) (any, error) {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return nil, &TypeError{Kind: schema.KindAddress, Value: raw, Reason: "not an IP address"}
	}
	if addr.Zone() != "" {
		return nil, &TypeError{Kind: schema.KindAddress, Value: raw, Reason: "zones are not allowed"}
	}
	return addr, nil
}

func decodeRange(raw string) (any, error) {
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, &TypeError{Kind: schema.KindAddressRange, Value: raw, Reason: "not a CIDR prefix"}
		}
		if masked := p.Masked(); masked != p {
			return nil, &TypeError{Kind: schema.KindAddressRange, Value: raw, Reason: fmt.Sprintf("host bits are set, did you mean %s", masked)}
		}
		return AddressRange{Prefix: p, Range: netipx.RangeOfPrefix(p)}, nil
	}

	from, to, ok := strings.Cut(raw, "-")
	if !ok {
		return nil, &TypeError{Kind: schema.KindAddressRange, Value: raw, Reason: "want a.b.c.d/n or first-last"}
	}
	first, err1 := netip.ParseAddr(strings.TrimSpace(from))
	last, err2 := netip.ParseAddr(strings.TrimSpace(to))
	if err1 != nil || err2 != nil {
		return nil, &TypeError{Kind: schema.KindAddressRange, Value: raw, Reason: "range bounds must be IP addresses"}
	}
	r := netipx.IPRangeFrom(first, last)
	if !r.IsValid() {
		return nil, &TypeError{Kind: schema.KindAddressRange, Value: raw, Reason: "first address must not exceed last and both must share a family"}
	}
	return AddressRange{Range: r}, nil
}

func checkEnum(e *schema.Entry, kind schema.Kind, raw string) error {
	if len(e.Values) == 0 {
		return nil
	}
	for _, v := range e.Values {
		if v == raw {
			return nil
		}
	}
	return &TypeError{Kind: kind, Value: raw, Reason: "must be one of " + strings.Join(e.Values, ", ")}
}
