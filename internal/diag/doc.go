// Package diag defines the diagnostic model shared by every assembly phase.
//
// Phases never return on the first finding; they report into a Bag and keep
// going so a single run surfaces everything wrong with a model. Codes are
// grouped in blocks by phase: 1xxx front-end, 2xxx identifiers, 3xxx merge,
// 4xxx mixins, 5xxx trait validation, 6xxx selectors.
package diag
