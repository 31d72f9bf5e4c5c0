package topology

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"geomstat-agent/internal/devstat"
)

// The kern.geom.confxml document is a <mesh> of classes, geoms and
// providers/consumers. Element id attributes are the kernel pointer values
// (hex strings) that the devstat table reports as device identities, which
// is what makes the correlation work.
type confMesh struct {
	Classes []confClass `xml:"class"`
}

type confClass struct {
	Geoms []confGeom `xml:"geom"`
}

type confGeom struct {
	Rank      uint32         `xml:"rank"`
	Providers []confProvider `xml:"provider"`
	Consumers []confConsumer `xml:"consumer"`
}

type confProvider struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name"`
}

type confConsumer struct {
	ID string `xml:"id,attr"`
}

// ParseGeomConfXML builds a resolver from a kern.geom.confxml document.
// Providers inherit the rank of their enclosing geom. Elements whose id
// attribute does not parse are skipped rather than failing the whole tree;
// the kernel occasionally emits entries mid-teardown.
func ParseGeomConfXML(doc []byte) (Static, error) {
	var mesh confMesh
	if err := xml.Unmarshal(doc, &mesh); err != nil {
		return nil, fmt.Errorf("parse geom confxml: %w", err)
	}

	out := Static{}
	for _, class := range mesh.Classes {
		for _, geom := range class.Geoms {
			for _, p := range geom.Providers {
				id, err := parseGeomID(p.ID)
				if err != nil {
					continue
				}
				out[devstat.DeviceID(id)] = Info{
					IsProvider: true,
					Name:       p.Name,
					Rank:       geom.Rank,
				}
			}
			for _, c := range geom.Consumers {
				id, err := parseGeomID(c.ID)
				if err != nil {
					continue
				}
				out[devstat.DeviceID(id)] = Info{IsProvider: false}
			}
		}
	}
	return out, nil
}

func parseGeomID(raw string) (uint64, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty geom id")
	}
	return strconv.ParseUint(s, 16, 64)
}
