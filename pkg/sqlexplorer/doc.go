// Package sqlexplorer defines the public types shared by the query service,
// its connection pool, retry executor and result cache: requests, result sets,
// credentials, configuration structs, error kinds and the small interfaces
// (Session, Dialer, CredentialProvider, ErrorClassifier, Logger) that the
// internal packages implement.
package sqlexplorer
