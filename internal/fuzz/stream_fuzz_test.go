package fuzztests

import (
	"bytes"
	"testing"

	"cbind/internal/diag"
	"cbind/internal/ingest"
	"cbind/internal/layout"
	"cbind/internal/stream"
)

func FuzzNDJSONIngest(f *testing.F) {
	addSeeds(f, streamSeeds)
	f.Fuzz(func(_ *testing.T, input []byte) {
		entries, err := stream.DecodeNDJSON(bytes.NewReader(clip(input)))
		if err != nil && entries == nil {
			return
		}
		bag := diag.NewBag(64)
		res := ingest.Ingest(entries, diag.BagReporter{Bag: bag})
		if _, err := res.Graph.DependencyOrder(); err != nil {
			return
		}
		_, _ = layout.Resolve(res.Graph, layout.X86_64LinuxGNU(), diag.BagReporter{Bag: bag})
	})
}

func FuzzCastXML(f *testing.F) {
	f.Add([]byte(`<GCC_XML><Struct id="_1" name="s" members="_2" size="32" align="32"/><Field id="_2" name="x" type="_3" offset="0"/><FundamentalType id="_3" name="int" size="32" align="32"/></GCC_XML>`))
	f.Add([]byte(`<CastXML><Typedef id="_1" name="t" type="_1"/></CastXML>`))
	f.Fuzz(func(_ *testing.T, input []byte) {
		_, _ = stream.ReadCastXML(bytes.NewReader(clip(input)))
	})
}
