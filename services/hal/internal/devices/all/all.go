// Package all links every HAT device builder into the registry.
package all

import (
	_ "iothat-go/services/hal/internal/devices/apds9960dev"
	_ "iothat-go/services/hal/internal/devices/bme280dev"
	_ "iothat-go/services/hal/internal/devices/bme680dev"
	_ "iothat-go/services/hal/internal/devices/inputdev"
	_ "iothat-go/services/hal/internal/devices/iomcudev"
	_ "iothat-go/services/hal/internal/devices/max30100dev"
	_ "iothat-go/services/hal/internal/devices/mma8491qdev"
	_ "iothat-go/services/hal/internal/devices/relaydev"
	_ "iothat-go/services/hal/internal/devices/veml6075dev"
)
