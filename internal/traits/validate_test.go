package traits_test

import (
	"fmt"
	"strings"
	"testing"

	"anvil/internal/diag"
	"anvil/internal/loader"
	"anvil/internal/model"
	"anvil/internal/source"
)

func buildGraph(t *testing.T, bodies ...string) (*model.Graph, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	asm := loader.NewAssembler(fs, 200)
	d := loader.NewDispatcher(fs)
	for i, b := range bodies {
		asm.Add(d.LowerBytes(fmt.Sprintf("doc%d.json", i), []byte(b), asm.Bag()))
	}
	g, bag, err := asm.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v\n%v", err, bag.Items())
	}
	return g, bag
}

func countCode(bag *diag.Bag, code diag.Code) int {
	n := 0
	for _, d := range bag.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}

func TestUnknownTraitIsReportedNotFatal(t *testing.T) {
	g, bag := buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.x#City": {"type": "structure", "traits": {"com.x#nope": {}}}
		}
	}`)
	if g == nil {
		t.Fatal("graph withheld for a validation finding")
	}
	if countCode(bag, diag.UnknownTrait) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestSelectorRejectsApplication(t *testing.T) {
	_, bag := buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.x#Name": {"type": "string", "traits": {"smithy.api#error": "client"}}
		}
	}`)
	if countCode(bag, diag.TraitApplicationNotAllowed) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
	if countCode(bag, diag.InvalidTraitValue) != 0 {
		t.Fatalf("valid value reported as invalid: %v", bag.Items())
	}
}

func TestConflictingTraitsReportedOncePerPair(t *testing.T) {
	_, bag := buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.x#Both": {
				"type": "structure",
				"traits": {"smithy.api#input": {}, "smithy.api#output": {}}
			}
		}
	}`)
	if countCode(bag, diag.ConflictingTraits) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestInvalidTraitValues(t *testing.T) {
	tests := []struct {
		name   string
		traits string
		want   string
	}{
		{"string expected", `{"smithy.api#documentation": 123}`, "expected a string"},
		{"integral member", `{"smithy.api#length": {"min": "x"}}`, "expected an integral number"},
		{"fractional integral", `{"smithy.api#length": {"min": 1.5}}`, "expected an integral number"},
		{"bad enum value", `{"smithy.api#error": "bogus"}`, "is not a value of enum"},
		{"array expected", `{"smithy.api#tags": "x"}`, "expected an array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, bag := buildGraph(t, `{
				"smithy": "2.0",
				"shapes": {"com.x#S": {"type": "structure", "traits": `+tt.traits+`}}
			}`)
			found := false
			for _, d := range bag.Items() {
				if d.Code == diag.InvalidTraitValue && strings.Contains(d.Message, tt.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("diagnostics = %v, want message containing %q", bag.Items(), tt.want)
			}
		})
	}
}

func TestCustomTraitStructureValue(t *testing.T) {
	def := `"com.x#meta": {
		"type": "structure",
		"members": {
			"name": {"target": "smithy.api#String", "traits": {"smithy.api#required": {}}}
		},
		"traits": {"smithy.api#trait": {}}
	}`

	_, bag := buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			`+def+`,
			"com.x#Ok": {"type": "structure", "traits": {"com.x#meta": {"name": "n"}}}
		}
	}`)
	if countCode(bag, diag.InvalidTraitValue) != 0 {
		t.Fatalf("valid application rejected: %v", bag.Items())
	}

	_, bag = buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			`+def+`,
			"com.x#Missing": {"type": "structure", "traits": {"com.x#meta": {}}},
			"com.x#Extra": {"type": "structure", "traits": {"com.x#meta": {"name": "n", "bogus": 1}}}
		}
	}`)
	if countCode(bag, diag.InvalidTraitValue) != 2 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestCustomTraitSelector(t *testing.T) {
	_, bag := buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.x#stringsOnly": {
				"type": "structure",
				"traits": {"smithy.api#trait": {"selector": "string"}}
			},
			"com.x#Name": {"type": "string", "traits": {"com.x#stringsOnly": {}}},
			"com.x#Count": {"type": "integer", "traits": {"com.x#stringsOnly": {}}}
		}
	}`)
	if countCode(bag, diag.TraitApplicationNotAllowed) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestMalformedTraitDefinitionSelector(t *testing.T) {
	_, bag := buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.x#broken": {
				"type": "structure",
				"traits": {"smithy.api#trait": {"selector": "[unclosed"}}
			},
			"com.x#S": {"type": "structure", "traits": {"com.x#broken": {}}}
		}
	}`)
	if countCode(bag, diag.InvalidSelector) == 0 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
	// A broken selector falls back to match-all; the application itself
	// stays legal.
	if countCode(bag, diag.TraitApplicationNotAllowed) != 0 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestMemberExclusivity(t *testing.T) {
	_, bag := buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.x#Payload": {
				"type": "structure",
				"members": {
					"a": {"target": "smithy.api#Blob", "traits": {"smithy.api#httpPayload": {}}},
					"b": {"target": "smithy.api#Blob", "traits": {"smithy.api#httpPayload": {}}}
				}
			}
		}
	}`)
	if countCode(bag, diag.StructuralExclusivityViolation) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestTargetExclusivity(t *testing.T) {
	_, bag := buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.x#Stream": {"type": "blob", "traits": {"smithy.api#streaming": {}}},
			"com.x#S": {
				"type": "structure",
				"members": {
					"a": {"target": "com.x#Stream"},
					"b": {"target": "com.x#Stream"}
				}
			}
		}
	}`)
	if countCode(bag, diag.StructuralExclusivityViolation) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestSingleCarrierIsNotAViolation(t *testing.T) {
	_, bag := buildGraph(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.x#Payload": {
				"type": "structure",
				"members": {
					"a": {"target": "smithy.api#Blob", "traits": {"smithy.api#httpPayload": {}}},
					"b": {"target": "smithy.api#Blob"}
				}
			}
		}
	}`)
	if countCode(bag, diag.StructuralExclusivityViolation) != 0 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}
