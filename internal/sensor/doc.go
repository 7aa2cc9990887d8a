// Package sensor turns thermometer lines read from a serial port into
// readings posted to a heatgrid server.
package sensor
