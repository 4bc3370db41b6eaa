// Package constants holds the handful of literal defaults shared across
// config loading and the CLI front-end that aren't worth their own config
// section.
package constants

// DefaultSyntaxTheme is the Chroma theme name used when config.UIConfig
// leaves syntax_theme unset. Any theme name chroma's styles registry
// recognizes works here (vulcan, github-dark, dracula, nord, monokai, ...).
const DefaultSyntaxTheme = "vulcan"
