// Package main hosts the tmctl CLI, a thin command graph over the
// translation-memory engine.
//
// Every command resolves configuration once through the shared command
// context, opens the engine for the duration of the call, and renders either
// a table or JSON. Commands that only scaffold files opt out of config loading
// with the skipConfigLoad annotation.
package main
