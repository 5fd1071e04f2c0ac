// Package api provides the REST API for BountyIndexor
// @title BountyIndexor API
// @version 1.0
// @description Read-only queries over indexed bounties, payouts and worker reputation
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @basePath /api/v1
// @schemes http https
package api
