// Package provision orchestrates portal repository workflows: forking
// the Globus template search portal, writing and publishing the
// static.json portal configuration, and the combined end-to-end portal
// creation.
//
// Each workflow accepts a Config struct carrying credentials and
// builds its own github.Client; nothing is shared or cached between
// calls. The main entry points are ForkTemplatePortal,
// ConfigureStaticJSON, and CreatePortal.
package provision
