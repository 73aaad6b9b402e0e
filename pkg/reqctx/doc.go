// Package reqctx carries request-scoped data through context.Context.
//
// HTTP middleware stores a RequestMeta for every request and AuthClaims
// for authenticated ones. Services never read fiber locals; they read
// these values (through the logging handler or authorize) from ctx.
package reqctx
