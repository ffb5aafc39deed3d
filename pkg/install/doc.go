// Package install resolves a flat dependency mapping into a flattened
// node_modules file tree.
//
// An [Installer] runs one session per call to [Installer.Install]:
//
//  1. Each root "name -> specifier" entry is resolved to a concrete
//     version and fetched.
//  2. The declared dependencies of every fetched package are crawled by a
//     fixed pool of workers. A package seen twice in one session (same
//     name@version) is recorded as a link instead of being fetched again,
//     which also terminates dependency cycles. Crawling stops at
//     [Options.MaxDepth].
//  3. The resulting forest of [Node] values is flattened by [Hoist]: the
//     most frequently required version of each package goes to
//     node_modules/<name>, every other version is nested under the package
//     that requires it.
//
// Failures of individual packages are logged and the package is left out.
// Only a root that cannot be resolved, an invalid root name, or
// cancellation of the caller's context fails the whole session.
//
// Progress of the current session is published through a [Tracker].
package install
