package domain

import "errors"

// Taxonomía de errores del pipeline. Los errores por mercado se aíslan y
// nunca abortan un ciclo; solo un pánico inesperado llega al scheduler.
var (
	// ErrDataQuality: snapshot malformado o incompleto. El mercado se
	// descarta del set de candidatos y el ciclo continúa.
	ErrDataQuality = errors.New("data quality: snapshot descartado")

	// ErrEstimator: timeout o fallo del estimador de probabilidad. Se
	// reemplaza por el estimate estructural de fallback y se marca la señal.
	ErrEstimator = errors.New("estimator unavailable")

	// ErrTransientIO: fallo de red/timeout en un colaborador. Se reintenta
	// en el siguiente tick o ciclo, nunca a mitad de ciclo.
	ErrTransientIO = errors.New("transient io")
)
