package topology

import (
	"testing"

	"github.com/stretchr/testify/require"

	"geomstat-agent/internal/devstat"
)

const sampleConfXML = `<mesh>
  <class id="0xffffffff81a00000">
    <name>DISK</name>
    <geom id="0xfffff80003a8c000">
      <class ref="0xffffffff81a00000"/>
      <name>ada0</name>
      <rank>1</rank>
      <provider id="0xfffff80003b17a00">
        <geom ref="0xfffff80003a8c000"/>
        <mode>r2w2e4</mode>
        <name>ada0</name>
        <mediasize>500107862016</mediasize>
        <sectorsize>512</sectorsize>
      </provider>
    </geom>
  </class>
  <class id="0xffffffff81a01000">
    <name>PART</name>
    <geom id="0xfffff80003a8c400">
      <class ref="0xffffffff81a01000"/>
      <name>ada0</name>
      <rank>2</rank>
      <consumer id="0xfffff80003b17c00">
        <geom ref="0xfffff80003a8c400"/>
        <provider ref="0xfffff80003b17a00"/>
        <mode>r2w2e3</mode>
      </consumer>
      <provider id="0xfffff80003b17e00">
        <geom ref="0xfffff80003a8c400"/>
        <mode>r1w1e2</mode>
        <name>ada0p1</name>
      </provider>
      <provider id="not-a-pointer">
        <name>bogus</name>
      </provider>
    </geom>
  </class>
</mesh>`

func TestParseGeomConfXML(t *testing.T) {
	resolver, err := ParseGeomConfXML([]byte(sampleConfXML))
	require.NoError(t, err)

	disk, ok := resolver.Resolve(devstat.DeviceID(0xfffff80003b17a00))
	require.True(t, ok)
	require.Equal(t, Info{IsProvider: true, Name: "ada0", Rank: 1}, disk)

	part, ok := resolver.Resolve(devstat.DeviceID(0xfffff80003b17e00))
	require.True(t, ok)
	require.Equal(t, Info{IsProvider: true, Name: "ada0p1", Rank: 2}, part)

	consumer, ok := resolver.Resolve(devstat.DeviceID(0xfffff80003b17c00))
	require.True(t, ok)
	require.False(t, consumer.IsProvider)

	_, ok = resolver.Resolve(devstat.DeviceID(0xdead))
	require.False(t, ok)
}

func TestParseGeomConfXMLRejectsGarbage(t *testing.T) {
	_, err := ParseGeomConfXML([]byte("not xml at all <"))
	require.Error(t, err)
}

func TestParseGeomID(t *testing.T) {
	id, err := parseGeomID("0xfffff80003b17a00")
	require.NoError(t, err)
	require.Equal(t, uint64(0xfffff80003b17a00), id)

	_, err = parseGeomID("")
	require.Error(t, err)
	_, err = parseGeomID("0x")
	require.Error(t, err)
}
