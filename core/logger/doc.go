// Package logger records background job events as newline delimited JSON.
//
// Entries are protobuf Struct messages so that the log can be consumed by
// anything that speaks protojson. The shell only ever appends to the log.
package logger
