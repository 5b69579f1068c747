package ipmatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"paepcke.de/ipmatch/ipaddr"
)

// vrpExport is the json export of routinator, rpki-client and the ripe validator.
type vrpExport struct {
	ROAs *[]json.RawMessage `json:"roas"`
}

type vrpObject struct {
	ASN       asnToken `json:"asn"`
	Prefix    string   `json:"prefix"`
	MaxLength *int     `json:"maxLength"`
	TA        string   `json:"ta"`
}

// asnToken accepts "AS13335" as well as 13335.
type asnToken string

func (a *asnToken) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = asnToken(s)
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 32)
	if err != nil {
		return errors.Errorf("invalid asn [%s]", b)
	}
	*a = asnToken("AS" + strconv.FormatUint(n, 10))
	return nil
}

// parseVRPJSON reads the "roas" array, one warning per broken object.
func parseVRPJSON(ctx context.Context, r io.Reader, l *loader) ([]VrpEntry, error) {
	var doc vrpExport
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, unreadable(err, "[vrp-json] decode")
	}
	if doc.ROAs == nil {
		return nil, errors.Wrap(ErrMalformedSource, "[vrp-json] missing roas array")
	}
	entries := make([]VrpEntry, 0, len(*doc.ROAs))
	for i, raw := range *doc.ROAs {
		if err := checkCtx(ctx, i+1); err != nil {
			return nil, err
		}
		e, err := vrpFromObject(raw)
		if err != nil {
			if err := l.skip(i+1, string(raw), err); err != nil {
				return nil, err
			}
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func vrpFromObject(raw json.RawMessage) (VrpEntry, error) {
	var o vrpObject
	if err := json.Unmarshal(raw, &o); err != nil {
		return VrpEntry{}, err
	}
	p, err := ipaddr.ParsePrefix(o.Prefix)
	if err != nil {
		return VrpEntry{}, err
	}
	// an absent max length equals the prefix length
	ml := p.Bits()
	if o.MaxLength != nil {
		ml = *o.MaxLength
	}
	return newVrpEntry(p, strconv.Itoa(ml), string(o.ASN), o.TA)
}
