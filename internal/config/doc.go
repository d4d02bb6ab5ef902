// Package config loads, normalizes, and validates tmengine configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as TMENGINE_S3_ACCESS_KEY. The Config type
// centralizes every threshold the match, terminology, and alignment engines
// use so they can be tuned without code changes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
