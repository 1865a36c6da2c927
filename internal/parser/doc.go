// Package parser turns serialized NACM configuration documents into the
// in-memory policy model.
//
// The wire format is the ietf-netconf-acm XML document, extended with the
// Tail-f ACM elements (cmdrule, context, gid, command defaults and logging
// flags). Parse decodes one document; LoadDir loads a directory of sources
// in alphabetical filename order, reporting per-file parse failures as
// advisory errors so that one broken source never takes down the rest.
//
// Watcher re-loads and re-merges the sources whenever a file changes and
// hands the freshly merged policy to a callback, which is expected to swap
// it into the running engine.
package parser
