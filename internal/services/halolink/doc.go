// Package halolink implements the image-platform client. HaloLink exposes a
// GraphQL API over a websocket speaking the Apollo graphql-ws subprotocol;
// the client holds one connection and pairs each operation with a single
// request/response exchange, matching the platform's single-flight
// expectations.
//
// Token acquisition is out of scope: callers supply a bearer token obtained
// elsewhere.
package halolink
