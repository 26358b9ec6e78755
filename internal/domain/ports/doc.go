// Package ports declares the external collaborators of the form engine: the field
// registry, candidate lookups, record persistence and event publishing. Services
// depend on these interfaces; infrastructure packages implement them.
package ports
