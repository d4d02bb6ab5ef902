// Package linking groups adjacent chunks into phrase groups.
//
// A caller opens a selection session, selects chunks individually, by
// position range, or by pattern, and links the selection into a PhraseGroup.
// Linking merges the member texts, links the members symmetrically, and
// persists the group with its updated chunks in one transaction. Unlinking
// restores the members and removes the group.
//
// Each session carries its own lock, so sessions never block each other
// beyond the registry lookup.
package linking
