package main

// General API documentation for swaggo. Run `swag init` to generate docs.
//
// @title           gemmad API
// @version         1.0
// @description     HTTP API for local chat with an on-device model, including model acquisition and lifecycle.
//
// @contact.name   gemmad maintainers
// @contact.url    https://github.com/your-org/gemmad
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
