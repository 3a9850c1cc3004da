package common

// AuthorizationHeaderName is the gRPC/HTTP metadata key that carries the
// bearer access token on inbound requests.
const AuthorizationHeaderName = "authorization"

// BearerScheme prefixes the access token inside the authorization header.
const BearerScheme = "Bearer"
