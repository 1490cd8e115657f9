package loader

import (
	"errors"
	"strings"
	"testing"

	"anvil/internal/diag"
	"anvil/internal/model"
)

func TestMixinFlattening(t *testing.T) {
	g, bag, err := assemble(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.weather#Auditable": {
				"type": "structure",
				"members": {"createdAt": {"target": "smithy.api#Timestamp"}},
				"traits": {
					"smithy.api#mixin": {},
					"smithy.api#documentation": "audit fields"
				}
			},
			"com.weather#City": {
				"type": "structure",
				"mixins": [{"target": "com.weather#Auditable"}],
				"members": {"name": {"target": "smithy.api#String"}}
			}
		}
	}`)
	if err != nil {
		t.Fatalf("Assemble: %v\n%v", err, bag.Items())
	}
	city, _ := g.Shape(model.ShapeID{Namespace: "com.weather", Name: "City"})
	if len(city.MemberNames) != 2 {
		t.Fatalf("MemberNames = %v", city.MemberNames)
	}
	copied, ok := g.Shape(city.ID.WithMember("createdAt"))
	if !ok {
		t.Fatal("createdAt not copied")
	}
	if target, _ := copied.Target.ID(); target.String() != "smithy.api#Timestamp" {
		t.Fatalf("copied target = %v", target)
	}
	if app, ok := city.Trait(model.ShapeID{Namespace: "smithy.api", Name: "documentation"}); !ok || app.Value.Str != "audit fields" {
		t.Fatalf("documentation = %v, %v", app, ok)
	}
	if city.HasTrait(model.MixinTraitID) {
		t.Fatal("mixin marker propagated to the user shape")
	}
}

func TestMixinLocalMemberWins(t *testing.T) {
	g, bag, err := assemble(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.weather#Auditable": {
				"type": "structure",
				"members": {"createdAt": {"target": "smithy.api#Timestamp"}},
				"traits": {"smithy.api#mixin": {}}
			},
			"com.weather#City": {
				"type": "structure",
				"mixins": [{"target": "com.weather#Auditable"}],
				"members": {"createdAt": {"target": "smithy.api#String"}}
			}
		}
	}`)
	if err != nil {
		t.Fatalf("Assemble: %v\n%v", err, bag.Items())
	}
	city := model.ShapeID{Namespace: "com.weather", Name: "City"}
	member, _ := g.Shape(city.WithMember("createdAt"))
	if target, _ := member.Target.ID(); target.String() != "smithy.api#String" {
		t.Fatalf("local member lost to mixin copy: %v", target)
	}
	owner, _ := g.Shape(city)
	if len(owner.MemberNames) != 1 {
		t.Fatalf("MemberNames = %v", owner.MemberNames)
	}
}

func TestMixinCycleIsFatal(t *testing.T) {
	g, bag, err := assemble(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.weather#A": {
				"type": "structure",
				"mixins": [{"target": "com.weather#B"}],
				"traits": {"smithy.api#mixin": {}}
			},
			"com.weather#B": {
				"type": "structure",
				"mixins": [{"target": "com.weather#A"}],
				"traits": {"smithy.api#mixin": {}}
			}
		}
	}`)
	if !errors.Is(err, ErrAssembly) {
		t.Fatalf("err = %v, want ErrAssembly", err)
	}
	if g != nil {
		t.Fatal("graph returned despite mixin cycle")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.CyclicMixinDependency {
			found = true
			if !strings.Contains(d.Message, "mixin cycle:") {
				t.Fatalf("message = %q", d.Message)
			}
		}
	}
	if !found {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestMixinKindMismatch(t *testing.T) {
	_, bag, err := assemble(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.weather#Choice": {
				"type": "union",
				"members": {"a": {"target": "smithy.api#String"}},
				"traits": {"smithy.api#mixin": {}}
			},
			"com.weather#City": {
				"type": "structure",
				"mixins": [{"target": "com.weather#Choice"}]
			}
		}
	}`)
	if err != nil {
		t.Fatalf("Assemble: %v\n%v", err, bag.Items())
	}
	if !hasCode(bag, diag.InvalidMixinTarget) {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestMixinWithoutMarker(t *testing.T) {
	_, bag, err := assemble(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.weather#Plain": {"type": "structure"},
			"com.weather#City": {
				"type": "structure",
				"mixins": [{"target": "com.weather#Plain"}]
			}
		}
	}`)
	if err != nil {
		t.Fatalf("Assemble: %v\n%v", err, bag.Items())
	}
	if !hasCode(bag, diag.InvalidMixinTarget) {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestPrivateMixinAcrossNamespaces(t *testing.T) {
	g, bag, err := assemble(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.base#Auditable": {
				"type": "structure",
				"members": {"createdAt": {"target": "smithy.api#Timestamp"}},
				"traits": {"smithy.api#mixin": {}, "smithy.api#private": {}}
			},
			"com.weather#City": {
				"type": "structure",
				"mixins": [{"target": "com.base#Auditable"}]
			}
		}
	}`)
	if err != nil {
		t.Fatalf("Assemble: %v\n%v", err, bag.Items())
	}
	if !hasCode(bag, diag.PrivateMixinUse) {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
	if bag.Count(diag.SevDanger) == 0 {
		t.Fatal("private mixin use not flagged as DANGER")
	}
	// The mixin still flattens; the finding is a flag, not a rejection.
	if _, ok := g.Shape(model.ShapeID{Namespace: "com.weather", Name: "City", Member: "createdAt"}); !ok {
		t.Fatal("members not copied")
	}
}

func TestMixinLocalTraitOverrides(t *testing.T) {
	g, bag, err := assemble(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.weather#Auditable": {
				"type": "structure",
				"traits": {
					"smithy.api#mixin": {},
					"smithy.api#documentation": "from the mixin"
				}
			},
			"com.weather#City": {
				"type": "structure",
				"mixins": [{"target": "com.weather#Auditable", "localTraits": ["smithy.api#documentation"]}]
			}
		}
	}`)
	if err != nil {
		t.Fatalf("Assemble: %v\n%v", err, bag.Items())
	}
	city, _ := g.Shape(model.ShapeID{Namespace: "com.weather", Name: "City"})
	if city.HasTrait(model.ShapeID{Namespace: "smithy.api", Name: "documentation"}) {
		t.Fatal("overridden trait copied anyway")
	}
}

func TestMixinChainFlattensTransitively(t *testing.T) {
	g, bag, err := assemble(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.weather#Base": {
				"type": "structure",
				"members": {"id": {"target": "smithy.api#String"}},
				"traits": {"smithy.api#mixin": {}}
			},
			"com.weather#Timestamped": {
				"type": "structure",
				"mixins": [{"target": "com.weather#Base"}],
				"members": {"at": {"target": "smithy.api#Timestamp"}},
				"traits": {"smithy.api#mixin": {}}
			},
			"com.weather#Event": {
				"type": "structure",
				"mixins": [{"target": "com.weather#Timestamped"}]
			}
		}
	}`)
	if err != nil {
		t.Fatalf("Assemble: %v\n%v", err, bag.Items())
	}
	event, _ := g.Shape(model.ShapeID{Namespace: "com.weather", Name: "Event"})
	if len(event.MemberNames) != 2 {
		t.Fatalf("MemberNames = %v", event.MemberNames)
	}
}

func TestMixinFlatteningIsIdempotent(t *testing.T) {
	g, bag, err := assemble(t, `{
		"smithy": "2.0",
		"shapes": {
			"com.x#Base": {
				"type": "structure",
				"members": {"id": {"target": "smithy.api#String"}},
				"traits": {"smithy.api#mixin": {}, "smithy.api#sensitive": {}}
			},
			"com.x#Event": {
				"type": "structure",
				"members": {"at": {"target": "smithy.api#Timestamp"}},
				"mixins": [{"target": "com.x#Base"}]
			}
		}
	}`)
	if err != nil {
		t.Fatalf("Assemble: %v (%d diagnostics)", err, bag.Len())
	}
	event, _ := g.Shape(model.ShapeID{Namespace: "com.x", Name: "Event"})
	wantMembers := strings.Join(event.MemberNames, ",")
	wantTraits := len(event.Traits)

	again := diag.NewBag(50)
	fatal := false
	flattenMixins(g, again, &fatal)

	if fatal || again.Len() != 0 {
		t.Fatalf("second flatten reported %d diagnostic(s), fatal=%v", again.Len(), fatal)
	}
	if got := strings.Join(event.MemberNames, ","); got != wantMembers {
		t.Fatalf("members changed on second flatten: %q -> %q", wantMembers, got)
	}
	if len(event.Traits) != wantTraits {
		t.Fatalf("traits changed on second flatten: %d -> %d", wantTraits, len(event.Traits))
	}
}
