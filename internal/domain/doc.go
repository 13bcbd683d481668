// Package domain defines core data models, contracts and the error taxonomy
// shared across keyward. It contains plain types (types), interfaces
// (interfaces) and typed errors only.
package domain
