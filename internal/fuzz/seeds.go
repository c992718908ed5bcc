package fuzztests

import "testing"

const maxFuzzInput = 1 << 16 // 64 KiB

var streamSeeds = []string{
	`{"kind":"macro","name":"FOO","body":"(1+2)"}`,
	`{"kind":"struct","name":"point","fields":[{"name":"x","type":{"kind":"fundamental","name":"int"}}]}`,
	`{"kind":"struct","name":"A","fields":[{"name":"b","type":{"kind":"pointer","elem":{"kind":"struct","name":"B"}}}]}
{"kind":"struct","name":"B","fields":[{"name":"a","type":{"kind":"pointer","elem":{"kind":"struct","name":"A"}}}]}`,
	`{"kind":"struct","name":"s","fields":[{"name":"a","type":{"kind":"fundamental","name":"unsigned int"},"bit_width":3}]}`,
	`{"kind":"function","name":"printf","result":{"kind":"fundamental","name":"int"},"params":[{"name":"fmt","type":{"kind":"pointer","elem":{"kind":"fundamental","name":"char","const":true}}}],"variadic":true}`,
	`{"kind":"typedef","name":"array","type":{"kind":"array","elem":{"kind":"fundamental","name":"char"}}}`,
	`{"kind":"enum","name":"color","values":[{"name":"RED","value":0},{"name":"GREEN","value":-1}]}`,
	`{"kind":"enum","name":"X","opaque":true}
{"kind":"typedef","name":"X_t","type":{"kind":"struct","name":"X","fields":[{"name":"a","type":{"kind":"fundamental","name":"int"}}]}}
{"kind":"function","name":"f","result":{"kind":"fundamental","name":"int"}}`,
	"not json at all",
}

var macroSeeds = []string{
	"(1+2)",
	"0xFFFFFFFFFFFFFFFF",
	"0x7FFFFFFFFFFFFFFFLL",
	"1u << 31",
	"(unsigned char)-1",
	`L"wide" "string"`,
	"'\\x41'",
	"1.5e3f",
	"sizeof(int) * 8",
	"A ? B : C",
	"some_function(1)",
	"((((((((1))))))))",
	"-2147483647 - 1",
}

func addSeeds(f *testing.F, seeds []string) {
	for _, s := range seeds {
		f.Add([]byte(s))
	}
}

func clip(input []byte) []byte {
	if len(input) > maxFuzzInput {
		input = input[:maxFuzzInput]
	}
	return append([]byte(nil), input...)
}
