package main

// General API documentation for swaggo. Regenerate with `swag init`.
//
// @title           gpud API
// @version         1.0
// @description     HTTP API of the GPU resource orchestrator: instance
// @description     lifecycle, backend health, GPU occupancy, idle shutdown.
//
// @contact.name   gpud maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
