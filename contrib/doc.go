// Package contrib holds the command line tools and test helpers built on
// surrealport.
//
// portdump and portrestore move anonymized graphs through CBOR dump files
// with a manifest sidecar. portserver serves exports and imports over HTTP
// and websockets. testenv connects tests to external databases.
//
// Note that this package is outside of the backward compatibility guarantees
// of the surrealport package.
package contrib
