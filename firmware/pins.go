//go:build tinygo

package main

import "machine"

const (
	// Sensor supply switch (WB_IO2 on the WisBlock base)
	PIN_SENSOR_POWER = machine.P1_02

	// ADC pins
	PIN_BATTERY_ADC   = machine.P0_05 // WB_A0, behind the 1.5M/1M divider
	PIN_TURBIDITY_ADC = machine.P0_31 // WB_A1

	// SX1262 on the RAK4631 core
	PIN_LORA_NSS   = machine.P1_10
	PIN_LORA_SCK   = machine.P1_11
	PIN_LORA_MOSI  = machine.P1_12
	PIN_LORA_MISO  = machine.P1_13
	PIN_LORA_BUSY  = machine.P1_14
	PIN_LORA_DIO1  = machine.P1_15
	PIN_LORA_RESET = machine.P1_06
	PIN_LORA_ANT   = machine.P1_05 // antenna switch supply

	// RAK1901 (SHTC3) sits on the primary I2C bus
	PIN_I2C_SDA = machine.P0_13
	PIN_I2C_SCL = machine.P0_14

	// Radio configuration
	LORA_FREQUENCY    = 916800000 // AU915 sub-band 2, channel 8
	LORA_TX_POWER_DBM = 22
	LORA_PREAMBLE     = 8

	// Console
	UART_BAUD_RATE = 115200
)

// ABP session, set at build time:
//
//	tinygo flash -target=rak4631 -ldflags="-X main.devAddr=26011BDA ..."
var (
	devAddr   = "00000000"
	nwkSKey   = "00000000000000000000000000000000"
	appSKey   = "00000000000000000000000000000000"
	region    = "AU915"
	dataRate  = "2"
	fcntStart = "0"
	logLevel  = "info"
)
