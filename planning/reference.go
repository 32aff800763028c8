package planning

// Seed reference data. Both stores insert these on first use; IDs are
// assigned in slice order starting at 1.
var (
	DefaultDomains = []Domain{
		{Name: "Atención", Description: "Atención al cliente"},
		{Name: "Facturación y Cobros", Description: "Facturación y gestión de cobros"},
		{Name: "Tecnología", Description: "Infraestructura y plataformas"},
		{Name: "Contratación", Description: "Contratación de servicios"},
		{Name: "Integración", Description: "Integración de sistemas"},
		{Name: "Datos", Description: "Datos y analítica"},
	}

	DefaultStatuses = []Status{
		{Name: "Idea", Order: 1},
		{Name: "Análisis", Order: 2},
		{Name: "Diseño Detallado", Order: 3},
		{Name: "Desarrollo", Order: 4},
		{Name: "Pruebas", Order: 5},
		{Name: "Despliegue", Order: 6},
		{Name: "Finalizado", Order: 7},
	}

	DefaultSkills = []Skill{
		{Name: "Project Management", Description: "Gestión de proyectos"},
		{Name: "Análisis", Description: "Análisis funcional"},
		{Name: "Diseño", Description: "Diseño técnico"},
		{Name: "Construcción", Description: "Desarrollo y construcción"},
		{Name: "QA", Description: "Pruebas y calidad"},
		{Name: "General", Description: "Tareas generales"},
	}
)
