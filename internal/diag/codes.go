package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Source / front-end errors (fatal per document).
	SyntaxError             Code = 1001
	UnsupportedModelVersion Code = 1002
	UnrecognizedSourceKind  Code = 1003
	IOLoadError             Code = 1004
	ArchiveManifestError    Code = 1005

	// Identifier and reference errors.
	InvalidIdentifierSyntax Code = 2001
	UnresolvedShapeID       Code = 2002

	// Merge-time errors.
	ConflictingShapeDefinition Code = 3001
	ConflictingMemberTarget    Code = 3002
	ConflictingTraitValue      Code = 3003
	InvalidMetadataMerge       Code = 3004

	// Mixin errors.
	CyclicMixinDependency Code = 4001
	InvalidMixinTarget    Code = 4002
	PrivateMixinUse       Code = 4003

	// Trait validation errors (collected, never abort assembly).
	UnknownTrait                  Code = 5001
	InvalidTraitValue             Code = 5002
	TraitApplicationNotAllowed    Code = 5003
	ConflictingTraits             Code = 5004
	StructuralExclusivityViolation Code = 5005

	// Selector errors.
	InvalidSelector Code = 6001
)

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ANV%04d", uint16(c))
}

var codeNames = map[Code]string{
	UnknownCode:                    "Unknown",
	SyntaxError:                    "SyntaxError",
	UnsupportedModelVersion:        "UnsupportedModelVersion",
	UnrecognizedSourceKind:         "UnrecognizedSourceKind",
	IOLoadError:                    "IOLoadError",
	ArchiveManifestError:           "ArchiveManifestError",
	InvalidIdentifierSyntax:        "InvalidIdentifierSyntax",
	UnresolvedShapeID:              "UnresolvedShapeId",
	ConflictingShapeDefinition:     "ConflictingShapeDefinition",
	ConflictingMemberTarget:        "ConflictingMemberTarget",
	ConflictingTraitValue:          "ConflictingTraitValue",
	InvalidMetadataMerge:           "InvalidMetadataMerge",
	CyclicMixinDependency:          "CyclicMixinDependency",
	InvalidMixinTarget:             "InvalidMixinTarget",
	PrivateMixinUse:                "PrivateMixinUse",
	UnknownTrait:                   "UnknownTrait",
	InvalidTraitValue:              "InvalidTraitValue",
	TraitApplicationNotAllowed:     "TraitApplicationNotAllowed",
	ConflictingTraits:              "ConflictingTraits",
	StructuralExclusivityViolation: "StructuralExclusivityViolation",
	InvalidSelector:                "InvalidSelector",
}
