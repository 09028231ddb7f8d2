// Package extract locates the values a completed step promised to write
// inside its loosely-typed worker output. The worker's output shape is not
// statically known, so extraction degrades gracefully through a fixed,
// ordered chain of strategies; a key is only unresolved after every
// strategy has been exhausted.
package extract
