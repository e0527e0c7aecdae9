// Package repository define los contratos de persistencia del subsistema de
// confianza de cuentas: tokens de un solo uso, recovery codes, usuarios y
// actividad de sesiones.
//
// Las implementaciones viven en internal/store. Los services nunca tocan
// SQL directamente: solo hablan con estas interfaces.
package repository
